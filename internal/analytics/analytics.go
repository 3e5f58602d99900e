package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownAnalysis rejects names outside the published set.
var ErrUnknownAnalysis = errors.New("analytics: unknown analysis")

// Name is a server-side aggregate procedure.
type Name string

const (
	Risk       Name = "get_risk_analysis"
	Resiliency Name = "get_resiliency_analysis"
	Gap        Name = "get_gap_analysis"
	Maturity   Name = "get_maturity_analysis"
	Department Name = "get_department_analysis"
)

// Names lists every analysis in dashboard order.
var Names = []Name{Risk, Resiliency, Gap, Maturity, Department}

// ParseName accepts either the procedure name or its short form ("risk").
func ParseName(raw string) (Name, error) {
	for _, n := range Names {
		if raw == string(n) || raw == n.Short() {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnalysis, raw)
}

// Short is the name without the get_ prefix and _analysis suffix.
func (n Name) Short() string {
	s := string(n)
	if len(s) > len("get__analysis") {
		return s[len("get_") : len(s)-len("_analysis")]
	}
	return s
}

// Caller invokes remote procedures.
type Caller interface {
	RPC(ctx context.Context, fn string, args any) (json.RawMessage, error)
}

// Service passes analysis payloads through verbatim.
type Service struct {
	caller Caller
}

// NewService wraps caller.
func NewService(caller Caller) *Service { return &Service{caller: caller} }

// Fetch runs one analysis for an organization.
func (s *Service) Fetch(ctx context.Context, name Name, orgID string) (json.RawMessage, error) {
	if _, err := ParseName(string(name)); err != nil {
		return nil, err
	}
	out, err := s.caller.RPC(ctx, string(name), map[string]string{"org_id": orgID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(out) == 0 {
		out = json.RawMessage("null")
	}
	return out, nil
}

// Dashboard holds every analysis keyed by short name.
type Dashboard map[string]json.RawMessage

// Dashboard fetches every analysis concurrently.
func (s *Service) Dashboard(ctx context.Context, orgID string) (Dashboard, error) {
	var (
		mu  sync.Mutex
		out = make(Dashboard, len(Names))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range Names {
		g.Go(func() error {
			payload, err := s.Fetch(gctx, n, orgID)
			if err != nil {
				return err
			}
			mu.Lock()
			out[n.Short()] = payload
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
