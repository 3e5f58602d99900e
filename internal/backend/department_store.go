package backend

import (
	"context"

	"continuity.org/internal/department"
)

// DepartmentStore implements department.Store.
type DepartmentStore struct {
	c *Client
}

// NewDepartmentStore wraps c.
func NewDepartmentStore(c *Client) *DepartmentStore { return &DepartmentStore{c: c} }

var _ department.Store = (*DepartmentStore)(nil)

// Assignments lists the user's assessment assignments through the
// department_assignments view.
func (s *DepartmentStore) Assignments(ctx context.Context, userID string) ([]department.Assignment, error) {
	var rows []struct {
		ID             string  `json:"id"`
		AssessmentID   string  `json:"assessment_id"`
		AssessmentName string  `json:"assessment_name"`
		DepartmentID   string  `json:"department_id"`
		DepartmentName string  `json:"department_name"`
		UserID         string  `json:"user_id"`
		Status         string  `json:"status"`
		DueDate        *string `json:"due_date"`
	}
	q := Query{Eq: map[string]string{"user_id": userID}, Order: "due_date"}
	if err := s.c.Select(ctx, "department_assignments", q, &rows); err != nil {
		return nil, err
	}
	out := make([]department.Assignment, len(rows))
	for i, r := range rows {
		out[i] = department.Assignment{
			ID:             r.ID,
			AssessmentID:   r.AssessmentID,
			AssessmentName: r.AssessmentName,
			DepartmentID:   r.DepartmentID,
			DepartmentName: r.DepartmentName,
			UserID:         r.UserID,
			Status:         r.Status,
			DueDate:        parseDate(r.DueDate),
		}
	}
	return out, nil
}

// Questions lists an assessment's question set.
func (s *DepartmentStore) Questions(ctx context.Context, assessmentID string) ([]department.Question, error) {
	var rows []struct {
		ID           string `json:"id"`
		AssessmentID string `json:"assessment_id"`
		Text         string `json:"question_text"`
		Category     string `json:"category"`
		Position     int    `json:"position"`
	}
	q := Query{Eq: map[string]string{"assessment_id": assessmentID}, Order: "position"}
	if err := s.c.Select(ctx, "department_questions", q, &rows); err != nil {
		return nil, err
	}
	out := make([]department.Question, len(rows))
	for i, r := range rows {
		out[i] = department.Question{ID: r.ID, AssessmentID: r.AssessmentID, Text: r.Text, Category: r.Category, Position: r.Position}
	}
	return out, nil
}
