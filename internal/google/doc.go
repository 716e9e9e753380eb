// Package google manages OAuth2 credentials for Google APIs.
//
// OAuth builds consent URLs and exchanges authorization codes. A
// CredentialManager wraps the stored credentials of one account, refreshes
// them when they are within RefreshThreshold of expiry, and reports when
// the caller should persist the new credentials.
package google
