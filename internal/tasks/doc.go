// Package tasks implements the Google Tasks task service.
//
// A Service is constructed per reconciliation run through the registry,
// bound to one account by Authenticate, and then creates, patches and
// deletes tasks in the account's configured task list (the user's default
// list unless the account config sets taskListId).
//
// Credentials are refreshed through google.CredentialManager before each
// call. After the run the engine asks UpdatedCredentials for the refreshed
// blob and persists it.
package tasks
