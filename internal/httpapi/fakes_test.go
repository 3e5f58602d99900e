package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"continuity.org/internal/analytics"
	"continuity.org/internal/bia"
	"continuity.org/internal/department"
	"continuity.org/internal/identity"
	"continuity.org/internal/notify"
)

const (
	orgID        = "org-1"
	managerToken = "manager-token"
	viewerToken  = "viewer-token"
	adminToken   = "platform-token"
	expiredToken = "expired-token"
	refreshToken = "refresh-1"
	freshToken   = "fresh-token"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*identity.Session
	expired  map[string]bool
	refresh  map[string]*identity.Session
}

func (f *fakeSessions) GetSession(_ context.Context, token string) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired[token] {
		return nil, identity.ErrSessionExpired
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) RefreshSession(_ context.Context, token string) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.refresh[token]
	if !ok {
		return nil, identity.ErrSessionExpired
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) SignOut(context.Context, string) error { return nil }

type fakeIdentityStore struct {
	admins map[string]*identity.AdminRecord
	users  map[string]*identity.Profile
	orgs   map[string]*identity.Organization
}

type adminFinder struct{ s *fakeIdentityStore }
type userFinder struct{ s *fakeIdentityStore }
type orgFinder struct{ s *fakeIdentityStore }

func (s *fakeIdentityStore) PlatformAdmins(context.Context) identity.AdminStore {
	return adminFinder{s}
}
func (s *fakeIdentityStore) Users(context.Context) identity.UserStore { return userFinder{s} }
func (s *fakeIdentityStore) Organizations(context.Context) identity.OrganizationStore {
	return orgFinder{s}
}

func (f adminFinder) Find(_ context.Context, id string) (*identity.AdminRecord, error) {
	if a, ok := f.s.admins[id]; ok {
		return a, nil
	}
	return nil, identity.ErrNotFound
}

func (f userFinder) Find(_ context.Context, id string) (*identity.Profile, error) {
	if p, ok := f.s.users[id]; ok {
		return p, nil
	}
	return nil, identity.ErrNotFound
}

func (f userFinder) Create(_ context.Context, p *identity.Profile) error {
	f.s.users[p.ID] = p
	return nil
}

func (f orgFinder) Find(_ context.Context, id string) (*identity.Organization, error) {
	if o, ok := f.s.orgs[id]; ok {
		return o, nil
	}
	return nil, identity.ErrNotFound
}

type memRepo struct {
	mu        sync.Mutex
	rows      map[string]bia.BusinessProcess
	deleteErr error
}

func (r *memRepo) ListProcesses(context.Context, string) ([]bia.BusinessProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bia.BusinessProcess, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) UpsertProcess(_ context.Context, _ string, p bia.BusinessProcess) (bia.BusinessProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.ID] = p
	return p, nil
}

func (r *memRepo) DeleteProcess(_ context.Context, _ string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.rows, id)
	return nil
}

type fakeCaller struct{}

func (fakeCaller) RPC(_ context.Context, fn string, args any) (json.RawMessage, error) {
	m, _ := args.(map[string]string)
	return json.RawMessage(fmt.Sprintf(`{"fn":%q,"org":%q}`, fn, m["org_id"])), nil
}

type fakeDepartments struct{}

func (fakeDepartments) Assignments(_ context.Context, userID string) ([]department.Assignment, error) {
	return []department.Assignment{{
		ID: "as-1", AssessmentID: "a-1", AssessmentName: "Finance BCP",
		DepartmentID: "d-1", DepartmentName: "Finance", UserID: userID, Status: "pending",
	}}, nil
}

func (fakeDepartments) Questions(_ context.Context, assessmentID string) ([]department.Question, error) {
	return []department.Question{
		{ID: "q-2", AssessmentID: assessmentID, Text: "Second", Position: 2},
		{ID: "q-1", AssessmentID: assessmentID, Text: "First", Position: 1},
	}, nil
}

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	api      *API
	repo     *memRepo
	hub      *notify.Hub
	sessions *fakeSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	sessions := &fakeSessions{
		sessions: map[string]*identity.Session{
			managerToken: {UserID: "u-manager", Email: "m@example.com", AccessToken: managerToken, ExpiresAt: exp},
			viewerToken:  {UserID: "u-viewer", Email: "v@example.com", AccessToken: viewerToken, ExpiresAt: exp},
			adminToken:   {UserID: "u-admin", Email: "a@example.com", AccessToken: adminToken, ExpiresAt: exp},
		},
		expired: map[string]bool{expiredToken: true},
		refresh: map[string]*identity.Session{
			refreshToken: {UserID: "u-manager", Email: "m@example.com", AccessToken: freshToken, RefreshToken: "refresh-2", ExpiresAt: exp},
		},
	}
	store := &fakeIdentityStore{
		admins: map[string]*identity.AdminRecord{"u-admin": {ID: "u-admin", FullName: "Root"}},
		users: map[string]*identity.Profile{
			"u-manager": {ID: "u-manager", FullName: "Mia Manager", Role: identity.RoleBCDRManager, OrganizationID: orgID},
			"u-viewer":  {ID: "u-viewer", FullName: "Vic Viewer", Role: identity.RoleViewer, OrganizationID: orgID},
		},
		orgs: map[string]*identity.Organization{orgID: {ID: orgID, Name: "Acme", Industry: "finance"}},
	}
	resolver, err := identity.NewResolver(store, identity.WithRefresher(sessions))
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	mgr, err := identity.NewManager(resolver, identity.WithSignOuter(sessions))
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	hub := notify.NewHub()
	repo := &memRepo{rows: map[string]bia.BusinessProcess{}}
	svc, err := bia.NewService(repo, bia.WithNotifier(hub))
	if err != nil {
		t.Fatalf("bia service: %v", err)
	}

	api := New(Deps{
		Sessions:    sessions,
		Identity:    mgr,
		BIA:         svc,
		Analytics:   analytics.NewService(fakeCaller{}),
		Departments: department.NewLoader(fakeDepartments{}, 2),
		Hub:         hub,
		Version:     "test",
	})
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, api: api, repo: repo, hub: hub, sessions: sessions}
}

func (e *testEnv) do(method, path, token string, body any, headers map[string]string) *http.Response {
	e.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}
