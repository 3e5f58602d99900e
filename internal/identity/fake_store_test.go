package identity

import (
	"context"
	"sync"
)

type memStore struct {
	mu       sync.Mutex
	admins   map[string]*AdminRecord
	users    map[string]*Profile
	orgs     map[string]*Organization
	adminErr error
	orgErr   error
	// staleToken makes every lookup with that access token fail with ErrInvalidToken.
	staleToken string
	lookups    int
	created    []*Profile
}

func newMemStore() *memStore {
	return &memStore{
		admins: map[string]*AdminRecord{},
		users:  map[string]*Profile{},
		orgs:   map[string]*Organization{},
	}
}

func (m *memStore) PlatformAdmins(context.Context) AdminStore       { return memAdmins{m} }
func (m *memStore) Users(context.Context) UserStore                 { return memUsers{m} }
func (m *memStore) Organizations(context.Context) OrganizationStore { return memOrgs{m} }

func (m *memStore) checkToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if s, ok := SessionFromContext(ctx); ok && m.staleToken != "" && s.AccessToken == m.staleToken {
		return ErrInvalidToken
	}
	return nil
}

type memAdmins struct{ m *memStore }

func (a memAdmins) Find(ctx context.Context, id string) (*AdminRecord, error) {
	if err := a.m.checkToken(ctx); err != nil {
		return nil, err
	}
	if a.m.adminErr != nil {
		return nil, a.m.adminErr
	}
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	rec, ok := a.m.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

type memUsers struct{ m *memStore }

func (u memUsers) Find(ctx context.Context, id string) (*Profile, error) {
	if err := u.m.checkToken(ctx); err != nil {
		return nil, err
	}
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	p, ok := u.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (u memUsers) Create(ctx context.Context, p *Profile) error {
	if err := u.m.checkToken(ctx); err != nil {
		return err
	}
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if _, ok := u.m.users[p.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *p
	u.m.users[p.ID] = &cp
	u.m.created = append(u.m.created, &cp)
	return nil
}

type memOrgs struct{ m *memStore }

func (o memOrgs) Find(ctx context.Context, id string) (*Organization, error) {
	if err := o.m.checkToken(ctx); err != nil {
		return nil, err
	}
	if o.m.orgErr != nil {
		return nil, o.m.orgErr
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	org, ok := o.m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

type stubRefresher struct {
	session *Session
	err     error
	calls   int
}

func (s *stubRefresher) RefreshSession(_ context.Context, _ string) (*Session, error) {
	s.calls++
	return s.session, s.err
}
