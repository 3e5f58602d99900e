package department

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	assignments []Assignment
	questions   map[string][]Question
	calls       atomic.Int32
	failOn      string
}

func (f *fakeStore) Assignments(context.Context, string) ([]Assignment, error) {
	return f.assignments, nil
}

func (f *fakeStore) Questions(ctx context.Context, id string) ([]Question, error) {
	f.calls.Add(1)
	if id == f.failOn {
		return nil, errors.New("boom")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Question(nil), f.questions[id]...), nil
}

func TestLoaderFillsEachSlot(t *testing.T) {
	store := &fakeStore{
		assignments: []Assignment{
			{ID: "as-1", AssessmentID: "a"},
			{ID: "as-2", AssessmentID: "b"},
			{ID: "as-3", AssessmentID: "a"},
		},
		questions: map[string][]Question{
			"a": {{ID: "q2", Position: 2}, {ID: "q1", Position: 1}},
			"b": {{ID: "q3", Position: 1}},
		},
	}
	got, err := NewLoader(store, 2).Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int32(2), store.calls.Load(), "question sets are fetched once per assessment")
	assert.Equal(t, "q1", got[0].Questions[0].ID)
	assert.Equal(t, "q3", got[1].Questions[0].ID)
	assert.Equal(t, got[0].Questions, got[2].Questions)
}

func TestLoaderFailsBatch(t *testing.T) {
	store := &fakeStore{
		assignments: []Assignment{{ID: "as-1", AssessmentID: "a"}, {ID: "as-2", AssessmentID: "b"}},
		failOn:      "b",
	}
	_, err := NewLoader(store, 0).Load(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "questions for b")
}

func TestLoaderRequiresUser(t *testing.T) {
	_, err := NewLoader(&fakeStore{}, 1).Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
