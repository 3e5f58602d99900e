package bia

import "math"

// HourlyRate is the loaded labor cost per recovery staff hour.
const HourlyRate = 150

var teamSizes = map[Priority]int{
	PriorityCritical: 8,
	PriorityHigh:     6,
	PriorityMedium:   4,
	PriorityLow:      2,
}

var reputationalMultipliers = map[Priority]float64{
	PriorityCritical: 2.0,
	PriorityHigh:     1.5,
	PriorityMedium:   1.0,
	PriorityLow:      0.5,
}

// TeamSize is the recovery team headcount for a tier; unknown tiers get 0.
func TeamSize(p Priority) int { return teamSizes[p] }

// ReputationalMultiplier scales daily revenue into indirect cost.
func ReputationalMultiplier(p Priority) float64 { return reputationalMultipliers[p] }

// CostBreakdown is the cost of one outage lasting the RTO.
type CostBreakdown struct {
	Labor            float64 `json:"labor"`
	RecoveryOverhead float64 `json:"recoveryOverhead"`
	SLAImpact        float64 `json:"slaImpact"`
	RegulatoryImpact float64 `json:"regulatoryImpact"`
	DirectTotal      float64 `json:"directTotal"`
	Indirect         float64 `json:"indirect"`
	Total            float64 `json:"total"`
}

// CalculateCosts prices an outage of the process.
func CalculateCosts(p BusinessProcess) CostBreakdown {
	daily := p.RevenueImpact.Daily
	c := CostBreakdown{
		Labor:            float64(p.RTO * HourlyRate * TeamSize(p.Priority)),
		RecoveryOverhead: daily * 15 / 100,
		SLAImpact:        daily * 20 / 100,
		RegulatoryImpact: daily * 30 / 100,
		Indirect:         ReputationalMultiplier(p.Priority) * daily,
	}
	c.DirectTotal = c.Labor + c.RecoveryOverhead + c.SLAImpact + c.RegulatoryImpact
	c.Total = c.DirectTotal + c.Indirect
	return c
}

// Projection is the effect of a downtime of a given length.
type Projection struct {
	Hours               float64 `json:"hours"`
	RevenueLoss         float64 `json:"revenueLoss"`
	OperationalPercent  float64 `json:"operationalPercent"`
	ReputationalPercent float64 `json:"reputationalPercent"`
}

// ProjectDowntime scales hourly revenue loss and rates operational and
// reputational impact against the MTD.
func ProjectDowntime(p BusinessProcess, hours float64) Projection {
	if hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		hours = 0
	}
	mtd := float64(p.MTD)
	return Projection{
		Hours:               hours,
		RevenueLoss:         p.RevenueImpact.Daily / 24 * hours,
		OperationalPercent:  percentOf(hours, mtd),
		ReputationalPercent: percentOf(hours, mtd*1.5),
	}
}

func percentOf(hours, limit float64) float64 {
	if limit <= 0 {
		if hours > 0 {
			return 100
		}
		return 0
	}
	return math.Min(100, hours/limit*100)
}
