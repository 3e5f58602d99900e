package pg

import (
	"context"

	"continuity.org/internal/department"
)

var _ department.Store = (*Store)(nil)

// Assignments implements department.Store.
func (s *Store) Assignments(ctx context.Context, userID string) ([]department.Assignment, error) {
	var out []department.Assignment
	err := s.db.SelectContext(ctx, &out, `
		select da.id, da.assessment_id, a.name as assessment_name,
			da.department_id, d.name as department_name, da.user_id, da.status, da.due_date
		from department_assignments da
		join department_assessments a on a.id = da.assessment_id
		join departments d on d.id = da.department_id
		where da.user_id = $1
		order by da.due_date nulls last, da.id
	`, userID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Questions implements department.Store.
func (s *Store) Questions(ctx context.Context, assessmentID string) ([]department.Question, error) {
	var out []department.Question
	err := s.db.SelectContext(ctx, &out, `
		select id, assessment_id, question_text as text, coalesce(category, '') as category, position
		from department_questions
		where assessment_id = $1
		order by position
	`, assessmentID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
