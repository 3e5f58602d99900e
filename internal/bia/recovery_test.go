package bia

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMetricsBaselines(t *testing.T) {
	cases := []struct {
		priority Priority
		want     RecoveryMetrics
	}{
		{PriorityCritical, RecoveryMetrics{RTO: 2, RPO: 0.25, MTD: 3}},
		{PriorityHigh, RecoveryMetrics{RTO: 8, RPO: 1, MTD: 12}},
		{PriorityMedium, RecoveryMetrics{RTO: 24, RPO: 4, MTD: 36}},
		{PriorityLow, RecoveryMetrics{RTO: 36, RPO: 24, MTD: 54}},
	}
	for _, tc := range cases {
		got, err := DeriveMetrics(BusinessProcess{Priority: tc.priority}, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.priority)
	}
}

func TestDeriveMetricsWeightsSelectedOption(t *testing.T) {
	got, err := DeriveMetrics(BusinessProcess{Priority: PriorityHigh}, []RecoveryResponse{
		{QuestionID: "downtime_tolerance", Value: 24},
		{QuestionID: "manual_workaround", Value: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, RecoveryMetrics{RTO: 14, RPO: 1, MTD: 21}, got)

	got, err = DeriveMetrics(BusinessProcess{Priority: PriorityHigh}, []RecoveryResponse{
		{QuestionID: "downtime_tolerance", Value: 24},
		{QuestionID: "manual_workaround", Value: 8},
		{QuestionID: DataCriticalityQuestion, Value: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, RecoveryMetrics{RTO: 15, RPO: 4, MTD: 23}, got)
}

func TestDeriveMetricsClamps(t *testing.T) {
	got, err := DeriveMetrics(BusinessProcess{Priority: PriorityCritical}, []RecoveryResponse{
		{QuestionID: "downtime_tolerance", Value: 72},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, got.RTO)
	assert.Equal(t, 6, got.MTD)

	got, err = DeriveMetrics(BusinessProcess{Priority: PriorityMedium}, []RecoveryResponse{
		{QuestionID: "downtime_tolerance", Value: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 24, got.RTO)
}

func TestDeriveMetricsClampsHugeValues(t *testing.T) {
	for _, v := range []float64{1e6, 1e19, 1e300, math.MaxFloat64} {
		got, err := DeriveMetrics(BusinessProcess{Priority: PriorityHigh}, []RecoveryResponse{
			{QuestionID: "downtime_tolerance", Value: v},
		})
		require.NoError(t, err)
		assert.Equal(t, RecoveryMetrics{RTO: 16, RPO: 1, MTD: 24}, got, v)
	}
}

func TestDeriveMetricsUnmatchedValueUsesFirstWeight(t *testing.T) {
	// 30 matches no downtime_tolerance option; the first option weighs 0.4.
	got, err := DeriveMetrics(BusinessProcess{Priority: PriorityHigh}, []RecoveryResponse{
		{QuestionID: "downtime_tolerance", Value: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, RecoveryMetrics{RTO: 12, RPO: 1, MTD: 18}, got)
}

func TestDeriveMetricsErrors(t *testing.T) {
	_, err := DeriveMetrics(BusinessProcess{Priority: "urgent"}, nil)
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = DeriveMetrics(BusinessProcess{Priority: PriorityLow}, []RecoveryResponse{{QuestionID: "unknown", Value: 1}})
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = DeriveMetrics(BusinessProcess{Priority: PriorityLow}, []RecoveryResponse{{QuestionID: "downtime_tolerance", Value: -1}})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
}

func TestApplyMetrics(t *testing.T) {
	p := BusinessProcess{Priority: PriorityCritical, RTO: 99}
	m, err := DeriveMetrics(p, nil)
	require.NoError(t, err)
	ApplyMetrics(&p, m)
	assert.Equal(t, 2, p.RTO)
	assert.Equal(t, 0.25, p.RPO)
	assert.Equal(t, 3, p.MTD)
}

func genResponses() gopter.Gen {
	questions := DefaultCatalogue().Recovery
	return gen.SliceOfN(len(questions), gen.Float64Range(0, 500)).Map(func(vals []float64) []RecoveryResponse {
		out := make([]RecoveryResponse, len(questions))
		for i, q := range questions {
			out[i] = RecoveryResponse{QuestionID: q.ID, Value: vals[i]}
		}
		return out
	})
}

func TestDeriveMetricsProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	priorities := gen.OneConstOf(PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow)

	properties.Property("rto within [baseline, 2*baseline]", prop.ForAll(
		func(p Priority, rs []RecoveryResponse) bool {
			m, err := DeriveMetrics(BusinessProcess{Priority: p}, rs)
			if err != nil {
				return false
			}
			b := Baselines[p]
			return m.RTO >= b.RTO && m.RTO <= 2*b.RTO
		},
		priorities, genResponses(),
	))

	properties.Property("mtd is ceil(rto*1.5)", prop.ForAll(
		func(p Priority, rs []RecoveryResponse) bool {
			m, err := DeriveMetrics(BusinessProcess{Priority: p}, rs)
			return err == nil && m.MTD == int(math.Ceil(float64(m.RTO)*1.5))
		},
		priorities, genResponses(),
	))

	properties.Property("derivation is idempotent", prop.ForAll(
		func(p Priority, rs []RecoveryResponse) bool {
			proc := BusinessProcess{Priority: p}
			first, err := DeriveMetrics(proc, rs)
			if err != nil {
				return false
			}
			ApplyMetrics(&proc, first)
			second, err := DeriveMetrics(proc, rs)
			return err == nil && first == second
		},
		priorities, genResponses(),
	))

	properties.TestingRun(t)
}
