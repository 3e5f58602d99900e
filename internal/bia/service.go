package bia

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"continuity.org/internal/notify"
	"continuity.org/internal/obs"
)

// Repository persists business processes per organization.
type Repository interface {
	ListProcesses(ctx context.Context, orgID string) ([]BusinessProcess, error)
	UpsertProcess(ctx context.Context, orgID string, p BusinessProcess) (BusinessProcess, error)
	DeleteProcess(ctx context.Context, orgID, id string) error
}

// Service owns the organizations' workspaces and their persistence.
type Service struct {
	repo     Repository
	notifier notify.Notifier
	logger   *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
	loading    map[string]*loadCall
}

type loadCall struct {
	done chan struct{}
	ws   *Workspace
	err  error
}

// ServiceOption configures the Service.
type ServiceOption func(*Service) error

// WithNotifier routes user notices to n.
func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *Service) error {
		if n == nil {
			return errors.New("notifier is nil")
		}
		s.notifier = n
		return nil
	}
}

// WithServiceLogger overrides the logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		s.logger = l
		return nil
	}
}

// NewService constructs a Service backed by repo.
func NewService(repo Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	s := &Service{
		repo:       repo,
		notifier:   notify.Discard,
		logger:     obs.Logger(),
		workspaces: make(map[string]*Workspace),
		loading:    make(map[string]*loadCall),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Workspace returns the organization's workspace, loading persisted
// processes on first use. Concurrent first calls share one load.
func (s *Service) Workspace(ctx context.Context, orgID string) (*Workspace, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidProcess)
	}
	s.mu.Lock()
	if ws, ok := s.workspaces[orgID]; ok {
		s.mu.Unlock()
		return ws, nil
	}
	call, inflight := s.loading[orgID]
	if !inflight {
		call = &loadCall{done: make(chan struct{})}
		s.loading[orgID] = call
	}
	s.mu.Unlock()

	if !inflight {
		go s.load(context.WithoutCancel(ctx), orgID, call)
	}
	select {
	case <-call.done:
		return call.ws, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) load(ctx context.Context, orgID string, call *loadCall) {
	ps, err := s.repo.ListProcesses(ctx, orgID)
	s.mu.Lock()
	delete(s.loading, orgID)
	if err == nil {
		ws := NewWorkspace(orgID)
		ws.load(ps)
		s.workspaces[orgID] = ws
		call.ws = ws
	} else {
		call.err = fmt.Errorf("load processes: %w", err)
	}
	s.mu.Unlock()
	close(call.done)
}

// Save persists one process explicitly.
func (s *Service) Save(ctx context.Context, orgID, id string) (BusinessProcess, error) {
	ws, err := s.Workspace(ctx, orgID)
	if err != nil {
		return BusinessProcess{}, err
	}
	rec, err := ws.Get(id)
	if err != nil {
		return BusinessProcess{}, err
	}
	saved, err := s.repo.UpsertProcess(ctx, orgID, rec.Process)
	if err != nil {
		s.notifier.Notify(ctx, scoped(notify.Error("Failed to save process", err), orgID))
		return BusinessProcess{}, fmt.Errorf("save process %s: %w", id, err)
	}
	ws.markCommitted(saved)
	s.notifier.Notify(ctx, scoped(notify.Success(fmt.Sprintf("Saved %s", saved.Name)), orgID))
	return saved, nil
}

// Complete saves a process once every impact question is answered.
func (s *Service) Complete(ctx context.Context, orgID, id string) (BusinessProcess, error) {
	ws, err := s.Workspace(ctx, orgID)
	if err != nil {
		return BusinessProcess{}, err
	}
	if _, err := ws.Get(id); err != nil {
		return BusinessProcess{}, err
	}
	if missing := ws.Missing(id); len(missing) > 0 {
		return BusinessProcess{}, fmt.Errorf("%w: %d unanswered questions", ErrIncomplete, len(missing))
	}
	return s.Save(ctx, orgID, id)
}

// Delete removes a process optimistically: it disappears from the workspace
// at once and is restored, marked rolled back, if the backend delete fails.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	ws, err := s.Workspace(ctx, orgID)
	if err != nil {
		return err
	}
	saved, err := ws.beginDelete(id)
	if err != nil {
		return err
	}
	if !saved {
		ws.commitDelete(id)
		return nil
	}
	if err := s.repo.DeleteProcess(ctx, orgID, id); err != nil && !errors.Is(err, ErrNotFound) {
		ws.rollbackDelete(id)
		s.logger.Warn("process delete rolled back",
			zap.String("organization_id", orgID),
			zap.String("process_id", id),
			zap.Error(err))
		s.notifier.Notify(ctx, scoped(notify.Error("Failed to delete process", err), orgID))
		return fmt.Errorf("delete process %s: %w", id, err)
	}
	ws.commitDelete(id)
	return nil
}

// Discard clears the organization's transient questionnaire state.
func (s *Service) Discard(ctx context.Context, orgID string) error {
	ws, err := s.Workspace(ctx, orgID)
	if err != nil {
		return err
	}
	ws.Discard()
	return nil
}

// Reload drops the cached workspace so the next access re-reads persisted state.
func (s *Service) Reload(orgID string) {
	s.mu.Lock()
	delete(s.workspaces, orgID)
	s.mu.Unlock()
}

func scoped(n notify.Notice, orgID string) notify.Notice {
	n.OrganizationID = orgID
	return n
}
