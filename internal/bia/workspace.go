package bia

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"continuity.org/internal/ids"
)

// SyncState tracks a record against the persisted copy.
type SyncState string

const (
	// StateDraft records have local changes not yet saved.
	StateDraft SyncState = "draft"
	// StateCommitted records match the backend.
	StateCommitted SyncState = "committed"
	// StatePending records have a delete in flight and are hidden from List.
	StatePending SyncState = "pending"
	// StateRolledBack records were restored after a failed delete.
	StateRolledBack SyncState = "rolled_back"
)

// Record is a process together with its sync state.
type Record struct {
	Process BusinessProcess `json:"process"`
	State   SyncState       `json:"state"`
	Saved   bool            `json:"saved"`
}

type entry struct {
	process BusinessProcess
	state   SyncState
	saved   bool
}

// Workspace is one organization's in-memory BIA working set: its processes and
// the questionnaire answers collected for them. Answers are never persisted.
type Workspace struct {
	org       string
	catalogue Catalogue
	now       func() time.Time

	mu       sync.RWMutex
	entries  map[string]*entry
	answers  map[string]Answers
	recovery map[string][]RecoveryResponse
}

// NewWorkspace returns an empty workspace using the built-in catalogue.
func NewWorkspace(org string) *Workspace {
	return &Workspace{
		org:       org,
		catalogue: defaultCatalogue,
		now:       func() time.Time { return time.Now().UTC() },
		entries:   make(map[string]*entry),
		answers:   make(map[string]Answers),
		recovery:  make(map[string][]RecoveryResponse),
	}
}

// Organization returns the owning organization id.
func (w *Workspace) Organization() string { return w.org }

// Catalogue returns the questionnaire used for scoring.
func (w *Workspace) Catalogue() Catalogue { return w.catalogue }

func (w *Workspace) load(ps []BusinessProcess) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range ps {
		w.entries[p.ID] = &entry{process: p.Clone(), state: StateCommitted, saved: true}
	}
}

// Add inserts a new draft process, assigning an id when absent.
func (w *Workspace) Add(p BusinessProcess) (BusinessProcess, error) {
	if err := p.Validate(); err != nil {
		return BusinessProcess{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if _, exists := w.entries[p.ID]; exists {
		return BusinessProcess{}, fmt.Errorf("%w: process %s already exists", ErrInvalidProcess, p.ID)
	}
	p.UpdatedAt = w.now()
	w.entries[p.ID] = &entry{process: p.Clone(), state: StateDraft}
	return p, nil
}

// LoadTemplate adds every process of a named template as drafts.
func (w *Workspace) LoadTemplate(name string) ([]BusinessProcess, error) {
	ps, err := Template(name)
	if err != nil {
		return nil, err
	}
	out := make([]BusinessProcess, 0, len(ps))
	for _, p := range ps {
		added, err := w.Add(p)
		if err != nil {
			return out, err
		}
		out = append(out, added)
	}
	return out, nil
}

// Get returns a copy of a visible process.
func (w *Workspace) Get(id string) (Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, err := w.visible(id)
	if err != nil {
		return Record{}, err
	}
	return e.record(), nil
}

// List returns visible processes ordered by name then id.
func (w *Workspace) List() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, 0, len(w.entries))
	for _, e := range w.entries {
		if e.state == StatePending {
			continue
		}
		out = append(out, e.record())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Process, out[j].Process
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return a.ID < b.ID
	})
	return out
}

// Update replaces a process's fields, keeping its id.
func (w *Workspace) Update(id string, p BusinessProcess) (BusinessProcess, error) {
	p.ID = id
	if err := p.Validate(); err != nil {
		return BusinessProcess{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	e, err := w.visible(id)
	if err != nil {
		return BusinessProcess{}, err
	}
	p.UpdatedAt = w.now()
	e.process = p.Clone()
	e.state = StateDraft
	return p, nil
}

// SetAnswers merges impact answers for a process, rescoring it. An empty
// value clears the answer.
func (w *Workspace) SetAnswers(id string, answers Answers) (BusinessProcess, ImpactScores, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, err := w.visible(id)
	if err != nil {
		return BusinessProcess{}, ImpactScores{}, err
	}
	merged := Answers{}
	for k, v := range w.answers[id] {
		merged[k] = v
	}
	for k, v := range answers {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	scores, err := w.catalogue.Impact.Score(merged)
	if err != nil {
		return BusinessProcess{}, ImpactScores{}, err
	}
	w.answers[id] = merged
	ApplyImpactScores(&e.process, scores)
	e.process.UpdatedAt = w.now()
	e.state = StateDraft
	return e.process.Clone(), scores, nil
}

// Answers returns the current answers for a process.
func (w *Workspace) Answers(id string) Answers {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := Answers{}
	for k, v := range w.answers[id] {
		out[k] = v
	}
	return out
}

// Missing lists impact questions still unanswered for a process.
func (w *Workspace) Missing(id string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []string
	for _, qid := range w.catalogue.Impact.QuestionIDs() {
		if _, ok := w.answers[id][qid]; !ok {
			out = append(out, qid)
		}
	}
	return out
}

// SetRecoveryResponses replaces the recovery responses for a process and
// re-derives its objectives.
func (w *Workspace) SetRecoveryResponses(id string, responses []RecoveryResponse) (BusinessProcess, RecoveryMetrics, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, err := w.visible(id)
	if err != nil {
		return BusinessProcess{}, RecoveryMetrics{}, err
	}
	m, err := w.catalogue.Recovery.Derive(e.process.Priority, responses)
	if err != nil {
		return BusinessProcess{}, RecoveryMetrics{}, err
	}
	w.recovery[id] = append([]RecoveryResponse(nil), responses...)
	ApplyMetrics(&e.process, m)
	e.process.UpdatedAt = w.now()
	e.state = StateDraft
	return e.process.Clone(), m, nil
}

// Discard drops every questionnaire response and every draft that was never
// saved. Saved drafts keep their local edits.
func (w *Workspace) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.answers = make(map[string]Answers)
	w.recovery = make(map[string][]RecoveryResponse)
	for id, e := range w.entries {
		if !e.saved && e.state == StateDraft {
			delete(w.entries, id)
		}
	}
}

func (w *Workspace) markCommitted(p BusinessProcess) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[p.ID]
	if !ok {
		e = &entry{}
		w.entries[p.ID] = e
	}
	e.process = p.Clone()
	e.state = StateCommitted
	e.saved = true
}

// beginDelete hides a record pending backend confirmation.
func (w *Workspace) beginDelete(id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	if !ok {
		return false, fmt.Errorf("%w: process %s", ErrNotFound, id)
	}
	if e.state == StatePending {
		return false, fmt.Errorf("%w: delete of %s", ErrPending, id)
	}
	e.state = StatePending
	return e.saved, nil
}

func (w *Workspace) commitDelete(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, id)
	delete(w.answers, id)
	delete(w.recovery, id)
}

func (w *Workspace) rollbackDelete(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[id]; ok && e.state == StatePending {
		e.state = StateRolledBack
	}
}

func (w *Workspace) visible(id string) (*entry, error) {
	e, ok := w.entries[id]
	if !ok || e.state == StatePending {
		return nil, fmt.Errorf("%w: process %s", ErrNotFound, id)
	}
	return e, nil
}

func (e *entry) record() Record {
	return Record{Process: e.process.Clone(), State: e.state, Saved: e.saved}
}
