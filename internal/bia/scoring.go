package bia

import (
	"fmt"
	"math"
)

// Answers maps impact question ids to chosen option values.
type Answers map[string]string

// ImpactScores are per-category means in [0, 100].
type ImpactScores struct {
	Financial    int `json:"financial"`
	Operational  int `json:"operational"`
	Reputational int `json:"reputational"`
}

// ScoreImpacts scores answers against the built-in catalogue.
func ScoreImpacts(answers Answers) (ImpactScores, error) {
	return defaultCatalogue.Impact.Score(answers)
}

// Score averages the chosen option impact per category. Unanswered questions
// count as zero but stay in the denominator.
func (c ImpactCatalogue) Score(answers Answers) (ImpactScores, error) {
	for qid, value := range answers {
		q, ok := c.lookup(qid)
		if !ok {
			return ImpactScores{}, fmt.Errorf("%w: unknown question %q", ErrInvalidAnswer, qid)
		}
		if _, ok := q.option(value); !ok {
			return ImpactScores{}, fmt.Errorf("%w: question %q has no option %q", ErrInvalidAnswer, qid, value)
		}
	}

	var out ImpactScores
	for _, slot := range []struct {
		cat Category
		dst *int
	}{
		{CategoryFinancial, &out.Financial},
		{CategoryOperational, &out.Operational},
		{CategoryReputational, &out.Reputational},
	} {
		score, err := categoryMean(slot.cat, c.questions(slot.cat), answers)
		if err != nil {
			return ImpactScores{}, err
		}
		*slot.dst = score
	}
	return out, nil
}

func categoryMean(cat Category, questions []Question, answers Answers) (int, error) {
	if len(questions) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyCategory, cat)
	}
	sum := 0
	for _, q := range questions {
		value, ok := answers[q.ID]
		if !ok {
			continue
		}
		opt, _ := q.option(value)
		sum += opt.Impact
	}
	return int(math.Round(float64(sum) / float64(len(questions)))), nil
}

func (q Question) option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// ApplyImpactScores writes the category scores onto the process.
func ApplyImpactScores(p *BusinessProcess, s ImpactScores) {
	p.FinancialImpact.Score = s.Financial
	p.OperationalImpact.Score = s.Operational
	p.ReputationalImpact.Score = s.Reputational
}
