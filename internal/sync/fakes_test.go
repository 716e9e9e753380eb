package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	stdsync "sync"
	"time"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordKey(calendarID, accountID, uid string) string {
	return calendarID + "/" + accountID + "/" + uid
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu        stdsync.Mutex
	records   map[string]Record
	calendars map[string]Calendar
	accounts  map[string]Account
	creds     map[string]string

	upsertErr    error
	deleteErr    error
	listErr      error
	updateCreds  error
	listTargets  error
	recordWrites int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:   make(map[string]Record),
		calendars: make(map[string]Calendar),
		accounts:  make(map[string]Account),
		creds:     make(map[string]string),
	}
}

func (s *fakeStore) seed(recs ...Record) {
	for _, r := range recs {
		s.records[recordKey(r.CalendarID, r.AccountID, r.EventUID)] = r
	}
}

func (s *fakeStore) ListRecords(_ context.Context, calendarID, accountID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Record
	for _, r := range s.records {
		if r.CalendarID == calendarID && r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventUID < out[j].EventUID })
	return out, nil
}

func (s *fakeStore) UpsertRecord(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.recordWrites++
	s.records[recordKey(rec.CalendarID, rec.AccountID, rec.EventUID)] = rec
	return nil
}

func (s *fakeStore) DeleteRecord(_ context.Context, calendarID, accountID, eventUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.recordWrites++
	delete(s.records, recordKey(calendarID, accountID, eventUID))
	return nil
}

func (s *fakeStore) record(calendarID, accountID, uid string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(calendarID, accountID, uid)]
	return r, ok
}

func (s *fakeStore) GetCalendar(_ context.Context, id string) (Calendar, error) {
	c, ok := s.calendars[id]
	if !ok {
		return Calendar{}, fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *fakeStore) ListCalendars(_ context.Context, username string) ([]Calendar, error) {
	var out []Calendar
	for _, c := range s.calendars {
		if c.Username == username {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetAccount(_ context.Context, id string) (Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *fakeStore) GetAccountByUser(_ context.Context, username string) (Account, error) {
	for _, a := range s.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("account for %s: %w", username, ErrNotFound)
}

func (s *fakeStore) UpdateCredentials(_ context.Context, accountID, credentials string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateCreds != nil {
		return s.updateCreds
	}
	s.creds[accountID] = credentials
	return nil
}

func (s *fakeStore) ListTargets(_ context.Context) ([]Target, error) {
	if s.listTargets != nil {
		return nil, s.listTargets
	}
	var out []Target
	for _, c := range s.calendars {
		for _, a := range s.accounts {
			if a.Username == c.Username {
				out = append(out, Target{CalendarID: c.ID, AccountID: a.ID, Username: c.Username})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// fakeService is an in-memory TaskService.
type fakeService struct {
	mu     stdsync.Mutex
	tasks  map[string]Event
	nextID int

	authErr     error
	createErr   map[string]error // by event uid
	updateErr   map[string]error // by event uid
	deleteErr   map[string]error // by task id
	emptyID     map[string]bool  // by event uid
	blockCreate map[string]bool  // by event uid; blocks until ctx is done

	creds        string
	credsChanged bool

	calls    []string
	inFlight int
	maxLive  int
	gate     chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{
		tasks:       make(map[string]Event),
		createErr:   make(map[string]error),
		updateErr:   make(map[string]error),
		deleteErr:   make(map[string]error),
		emptyID:     make(map[string]bool),
		blockCreate: make(map[string]bool),
	}
}

func (f *fakeService) enter(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.inFlight++
	if f.inFlight > f.maxLive {
		f.maxLive = f.inFlight
	}
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeService) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeService) Authenticate(_ context.Context, _, _ string) error {
	return f.authErr
}

func (f *fakeService) CreateTask(ctx context.Context, ev Event) (string, error) {
	f.enter("create " + ev.UID)
	defer f.leave()

	f.mu.Lock()
	block := f.blockCreate[ev.UID]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[ev.UID]; err != nil {
		return "", err
	}
	if f.emptyID[ev.UID] {
		return "", nil
	}
	f.nextID++
	id := fmt.Sprintf("task-%d", f.nextID)
	f.tasks[id] = ev
	return id, nil
}

func (f *fakeService) UpdateTask(_ context.Context, taskID string, ev Event) error {
	f.enter("update " + ev.UID)
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[ev.UID]; err != nil {
		return err
	}
	if _, ok := f.tasks[taskID]; !ok {
		return ErrNotFound
	}
	f.tasks[taskID] = ev
	return nil
}

func (f *fakeService) DeleteTask(_ context.Context, taskID string) error {
	f.enter("delete " + taskID)
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[taskID]; err != nil {
		return err
	}
	if _, ok := f.tasks[taskID]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeService) UpdatedCredentials() (string, bool) {
	return f.creds, f.credsChanged
}

func (f *fakeService) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSource returns fixed events per URL.
type fakeSource struct {
	events map[string][]Event
	err    error
}

func (s *fakeSource) FetchEvents(_ context.Context, url string) ([]Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events[url], nil
}
