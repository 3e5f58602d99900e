package department

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("department: not found")

// Assignment is a department assessment assigned to a user.
type Assignment struct {
	ID             string     `json:"id" db:"id"`
	AssessmentID   string     `json:"assessmentId" db:"assessment_id"`
	AssessmentName string     `json:"assessmentName" db:"assessment_name"`
	DepartmentID   string     `json:"departmentId" db:"department_id"`
	DepartmentName string     `json:"departmentName" db:"department_name"`
	UserID         string     `json:"userId" db:"user_id"`
	Status         string     `json:"status" db:"status"`
	DueDate        *time.Time `json:"dueDate,omitempty" db:"due_date"`
}

// Question is one item of an assessment's question set.
type Question struct {
	ID           string `json:"id" db:"id"`
	AssessmentID string `json:"assessmentId" db:"assessment_id"`
	Text         string `json:"text" db:"text"`
	Category     string `json:"category,omitempty" db:"category"`
	Position     int    `json:"position" db:"position"`
}

// Assessment is an assignment with its questions.
type Assessment struct {
	Assignment
	Questions []Question `json:"questions"`
}

// Store reads assignments and question sets.
type Store interface {
	Assignments(ctx context.Context, userID string) ([]Assignment, error)
	Questions(ctx context.Context, assessmentID string) ([]Question, error)
}

// Loader assembles a user's department assessments.
type Loader struct {
	store Store
	limit int
}

// NewLoader returns a Loader fetching at most limit question sets at once.
func NewLoader(store Store, limit int) *Loader {
	if limit <= 0 {
		limit = 4
	}
	return &Loader{store: store, limit: limit}
}

// Load lists the user's assignments and fetches each distinct question set
// concurrently. Any failure cancels the batch.
func (l *Loader) Load(ctx context.Context, userID string) ([]Assessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	assignments, err := l.store.Assignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	var (
		mu        sync.Mutex
		questions = make(map[string][]Question, len(assignments))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	seen := map[string]bool{}
	for _, a := range assignments {
		if seen[a.AssessmentID] {
			continue
		}
		seen[a.AssessmentID] = true
		id := a.AssessmentID
		g.Go(func() error {
			qs, err := l.store.Questions(gctx, id)
			if err != nil {
				return fmt.Errorf("questions for %s: %w", id, err)
			}
			sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
			mu.Lock()
			questions[id] = qs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Assessment, len(assignments))
	for i, a := range assignments {
		out[i] = Assessment{Assignment: a, Questions: questions[a.AssessmentID]}
	}
	return out, nil
}
