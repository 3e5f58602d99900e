package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache stores resolutions for the lifetime of a session.
type Cache interface {
	Get(ctx context.Context, key string) (Resolution, bool, error)
	Set(ctx context.Context, key string, r Resolution, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Snapshot is the serializable form of a Resolution (tokens excluded).
type Snapshot struct {
	Kind           string        `json:"kind"`
	ID             string        `json:"id,omitempty"`
	FullName       string        `json:"full_name,omitempty"`
	Role           Role          `json:"role,omitempty"`
	OrganizationID string        `json:"organization_id,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
}

// SnapshotOf captures r for storage or transport.
func SnapshotOf(r Resolution) Snapshot {
	snap := Snapshot{Kind: Kind(r.Identity), Organization: r.Organization}
	switch v := r.Identity.(type) {
	case PlatformAdmin:
		snap.ID, snap.FullName, snap.Role = v.ID, v.FullName, RoleSuperAdmin
	case OrganizationMember:
		snap.ID, snap.FullName, snap.Role, snap.OrganizationID = v.ID, v.FullName, v.Role, v.OrganizationID
	}
	return snap
}

// Resolution rebuilds the resolution held by the snapshot.
func (s Snapshot) Resolution() (Resolution, error) {
	switch s.Kind {
	case "platform_admin":
		return Resolution{Identity: PlatformAdmin{ID: s.ID, FullName: s.FullName}}, nil
	case "member":
		role, err := ParseRole(string(s.Role))
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{
			Identity:     OrganizationMember{ID: s.ID, FullName: s.FullName, Role: role, OrganizationID: s.OrganizationID},
			Organization: s.Organization,
		}, nil
	case "unauthenticated":
		return Resolution{Identity: Unauthenticated{}}, nil
	default:
		return Resolution{}, fmt.Errorf("identity: unknown snapshot kind %q", s.Kind)
	}
}

// MarshalResolution encodes r as JSON.
func MarshalResolution(r Resolution) ([]byte, error) {
	return json.Marshal(SnapshotOf(r))
}

// UnmarshalResolution decodes JSON produced by MarshalResolution.
func UnmarshalResolution(data []byte) (Resolution, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Resolution{}, err
	}
	return snap.Resolution()
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	res     Resolution
	expires time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Resolution, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Resolution{}, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return Resolution{}, false, nil
	}
	return e.res, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r Resolution, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{res: Resolution{Identity: r.Identity, Organization: r.Organization}}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
