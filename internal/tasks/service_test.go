package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/duety/internal/google"
	"github.com/teemow/duety/internal/sync"
)

// fakeTasksAPI serves the subset of the Tasks REST API the adapter uses.
type fakeTasksAPI struct {
	*httptest.Server

	mu       gosync.Mutex
	tasks    map[string]map[string]any // by id
	lists    []string                  // list id of every request
	auth     []string                  // Authorization header of every request
	patches  []map[string]any
	nextID   int
	failWith int
}

func newFakeTasksAPI(t *testing.T) *fakeTasksAPI {
	t.Helper()
	api := &fakeTasksAPI{tasks: make(map[string]map[string]any)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks/v1/lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		body := api.track(t, r)
		if api.fail(w) {
			return
		}
		api.mu.Lock()
		api.nextID++
		id := fmt.Sprintf("task-%d", api.nextID)
		body["id"] = id
		api.tasks[id] = body
		api.mu.Unlock()
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("PATCH /tasks/v1/lists/{list}/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		body := api.track(t, r)
		if api.fail(w) {
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		api.patches = append(api.patches, body)
		existing, ok := api.tasks[r.PathValue("id")]
		if !ok {
			writeAPIError(w, http.StatusNotFound)
			return
		}
		for k, v := range body {
			existing[k] = v
		}
		_ = json.NewEncoder(w).Encode(existing)
	})
	mux.HandleFunc("DELETE /tasks/v1/lists/{list}/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.track(t, r)
		if api.fail(w) {
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		if _, ok := api.tasks[r.PathValue("id")]; !ok {
			writeAPIError(w, http.StatusGone)
			return
		}
		delete(api.tasks, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (api *fakeTasksAPI) track(t *testing.T, r *http.Request) map[string]any {
	api.mu.Lock()
	api.lists = append(api.lists, r.PathValue("list"))
	api.auth = append(api.auth, r.Header.Get("Authorization"))
	api.mu.Unlock()

	body := map[string]any{}
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &body))
	}
	return body
}

func (api *fakeTasksAPI) fail(w http.ResponseWriter) bool {
	api.mu.Lock()
	code := api.failWith
	api.mu.Unlock()
	if code == 0 {
		return false
	}
	writeAPIError(w, code)
	return true
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": http.StatusText(code)},
	})
}

func validCredentials(t *testing.T, accessToken string, expiresIn time.Duration) string {
	t.Helper()
	blob, err := google.Credentials{
		AccessToken:  accessToken,
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(expiresIn),
	}.Encode()
	require.NoError(t, err)
	return blob
}

func newTestService(api *fakeTasksAPI, oauthOpts ...google.Option) *Service {
	return New(Options{
		OAuth:    google.NewOAuth("id", "secret", oauthOpts...),
		Endpoint: api.URL + "/",
	})
}

func authenticated(t *testing.T, api *fakeTasksAPI, config string) *Service {
	t.Helper()
	s := newTestService(api)
	require.NoError(t, s.Authenticate(context.Background(), validCredentials(t, "access-1", time.Hour), config))
	return s
}

func TestService_CreateTask(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, "")

	due := time.Date(2024, 5, 1, 23, 59, 0, 0, time.FixedZone("CET", 3600))
	id, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "Essay", Description: "2000 words", Due: &due})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	task := api.tasks["task-1"]
	assert.Equal(t, "Essay", task["title"])
	assert.Equal(t, "2000 words", task["notes"])
	assert.Equal(t, "2024-05-01T22:59:00Z", task["due"])
	assert.Equal(t, []string{DefaultTaskListID}, api.lists)
	assert.Equal(t, "Bearer access-1", api.auth[0])
}

func TestService_TaskListFromConfig(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, `{"taskListId":"school"}`)

	_, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"school"}, api.lists)
}

func TestService_DefaultTaskListOption(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := New(Options{
		OAuth:             google.NewOAuth("id", "secret"),
		Endpoint:          api.URL + "/",
		DefaultTaskListID: "configured",
	})
	require.NoError(t, s.Authenticate(context.Background(), validCredentials(t, "a", time.Hour), ""))

	_, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"configured"}, api.lists)
}

func TestService_UpdateTaskClearsRemovedFields(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, "")

	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	id, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "a", Description: "notes", Due: &due})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTask(context.Background(), id, sync.Event{UID: "e1", Summary: "b"}))

	require.Len(t, api.patches, 1)
	patch := api.patches[0]
	assert.Equal(t, "b", patch["title"])
	assert.Contains(t, patch, "notes")
	assert.Nil(t, patch["notes"])
	assert.Contains(t, patch, "due")
	assert.Nil(t, patch["due"])
}

func TestService_NotFound(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, "")

	err := s.UpdateTask(context.Background(), "missing", sync.Event{UID: "e1", Summary: "x"})
	assert.ErrorIs(t, err, sync.ErrNotFound)

	err = s.DeleteTask(context.Background(), "missing")
	assert.ErrorIs(t, err, sync.ErrNotFound)
}

func TestService_DeleteTask(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, "")

	id, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(context.Background(), id))
	assert.Empty(t, api.tasks)
}

func TestService_ErrorMapping(t *testing.T) {
	api := newFakeTasksAPI(t)
	s := authenticated(t, api, "")

	api.failWith = http.StatusUnauthorized
	_, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	assert.True(t, sync.IsAuthError(err), "401 should be an auth error: %v", err)

	api.failWith = http.StatusInternalServerError
	_, err = s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	require.Error(t, err)
	assert.False(t, sync.IsAuthError(err))
	assert.NotErrorIs(t, err, sync.ErrNotFound)
}

func TestService_AuthenticateErrors(t *testing.T) {
	api := newFakeTasksAPI(t)

	tests := []struct {
		name   string
		creds  string
		config string
		op     string
	}{
		{"malformed credentials", "{", "", "decode credentials"},
		{"missing access token", `{"refreshToken":"r"}`, "", "decode credentials"},
		{"malformed config", validCredentials(t, "a", time.Hour), "[", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestService(api).Authenticate(context.Background(), tt.creds, tt.config)
			var authErr *sync.AuthError
			require.True(t, errors.As(err, &authErr), "got %v", err)
			assert.Equal(t, tt.op, authErr.Op)
		})
	}
}

func TestService_RefreshesExpiringCredentials(t *testing.T) {
	api := newFakeTasksAPI(t)
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	s := newTestService(api, google.WithEndpoint(oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}))
	require.NoError(t, s.Authenticate(context.Background(), validCredentials(t, "access-1", time.Minute), ""))

	_, err := s.CreateTask(context.Background(), sync.Event{UID: "e1", Summary: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-2", api.auth[0])

	blob, changed := s.UpdatedCredentials()
	require.True(t, changed)
	assert.True(t, strings.Contains(blob, `"accessToken":"access-2"`))
	assert.True(t, strings.Contains(blob, `"refreshToken":"refresh"`))
}

func TestService_RefreshFailureIsAuthError(t *testing.T) {
	api := newFakeTasksAPI(t)
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenSrv.Close()

	s := newTestService(api, google.WithEndpoint(oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}))
	err := s.Authenticate(context.Background(), validCredentials(t, "access-1", -time.Minute), "")

	var authErr *sync.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "refresh", authErr.Op)
	_, changed := s.UpdatedCredentials()
	assert.False(t, changed)
}

func TestService_NotAuthenticated(t *testing.T) {
	s := New(Options{OAuth: google.NewOAuth("id", "secret")})
	_, err := s.CreateTask(context.Background(), sync.Event{UID: "e1"})
	assert.True(t, sync.IsAuthError(err))
}

func TestTaskFromEvent(t *testing.T) {
	task := taskFromEvent(sync.Event{UID: "e1", Summary: "title"})
	assert.Equal(t, "title", task.Title)
	assert.ElementsMatch(t, []string{"Notes", "Due"}, task.NullFields)
}

func TestParseAccountConfig(t *testing.T) {
	cfg, err := parseAccountConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.TaskListID)

	cfg, err = parseAccountConfig(`{"taskListId":"abc"}`)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.TaskListID)
}
