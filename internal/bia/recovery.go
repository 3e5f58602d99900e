package bia

import (
	"fmt"
	"math"
)

// Baseline is the standard recovery objective of a priority tier.
type Baseline struct {
	RTO int     `json:"rto"`
	RPO float64 `json:"rpo"`
}

// Baselines holds the per-tier standard objectives in hours.
var Baselines = map[Priority]Baseline{
	PriorityCritical: {RTO: 2, RPO: 0.25},
	PriorityHigh:     {RTO: 8, RPO: 1},
	PriorityMedium:   {RTO: 24, RPO: 4},
	PriorityLow:      {RTO: 36, RPO: 24},
}

// BaselineFor returns the tier baseline.
func BaselineFor(p Priority) (Baseline, error) {
	b, ok := Baselines[p]
	if !ok {
		return Baseline{}, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return b, nil
}

// RecoveryResponse is a numeric answer to a recovery question.
type RecoveryResponse struct {
	QuestionID string  `json:"questionId"`
	Value      float64 `json:"value"`
}

// RecoveryMetrics are derived objectives in hours.
type RecoveryMetrics struct {
	RTO int     `json:"rto"`
	RPO float64 `json:"rpo"`
	MTD int     `json:"mtd"`
}

// DeriveMetrics derives objectives from the built-in recovery catalogue.
func DeriveMetrics(p BusinessProcess, responses []RecoveryResponse) (RecoveryMetrics, error) {
	return defaultCatalogue.Recovery.Derive(p.Priority, responses)
}

// Derive computes RTO, RPO and MTD for a priority tier.
//
// Each response contributes value times the weight of the option it selects;
// a value matching no option uses the question's first option weight. The
// rounded sum is clamped to [baseline, 2*baseline]. RPO comes from the
// data criticality response when present.
func (c RecoveryCatalogue) Derive(priority Priority, responses []RecoveryResponse) (RecoveryMetrics, error) {
	base, err := BaselineFor(priority)
	if err != nil {
		return RecoveryMetrics{}, err
	}

	weighted := 0.0
	rpo := base.RPO
	for _, r := range responses {
		q, _, ok := c.lookup(r.QuestionID)
		if !ok {
			return RecoveryMetrics{}, fmt.Errorf("%w: unknown recovery question %q", ErrInvalidAnswer, r.QuestionID)
		}
		if r.Value < 0 || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return RecoveryMetrics{}, fmt.Errorf("%w: question %q value %v", ErrInvalidAnswer, r.QuestionID, r.Value)
		}
		weighted += r.Value * q.weightFor(r.Value)
		if r.QuestionID == DataCriticalityQuestion {
			rpo = r.Value
		}
	}

	// Clamp before converting; large sums overflow int.
	weighted = math.Min(math.Max(weighted, float64(base.RTO)), float64(2*base.RTO))
	rto := int(math.Round(weighted))
	return RecoveryMetrics{
		RTO: rto,
		RPO: rpo,
		MTD: MTDFor(rto),
	}, nil
}

// MTDFor is ceil(rto * 1.5).
func MTDFor(rto int) int {
	return (rto*3 + 1) / 2
}

func (q RecoveryQuestion) weightFor(value float64) float64 {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Weight
		}
	}
	return q.Options[0].Weight
}

// ApplyMetrics writes derived objectives onto the process.
func ApplyMetrics(p *BusinessProcess, m RecoveryMetrics) {
	p.RTO = m.RTO
	p.RPO = m.RPO
	p.MTD = m.MTD
}
