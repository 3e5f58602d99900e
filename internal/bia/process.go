package bia

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the four-tier criticality of a business process.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists tiers from most to least critical.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority validates a priority tier.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
}

// RevenueImpact is lost revenue over common windows.
type RevenueImpact struct {
	Daily   float64 `json:"daily" yaml:"daily"`
	Weekly  float64 `json:"weekly" yaml:"weekly"`
	Monthly float64 `json:"monthly" yaml:"monthly"`
}

// ScoredImpact is a 0–100 score with free-form notes.
type ScoredImpact struct {
	Score   int    `json:"score" yaml:"score"`
	Details string `json:"details,omitempty" yaml:"details"`
}

// Dependencies are the structured upstream dependencies of a process.
type Dependencies struct {
	Applications   []string `json:"applications" yaml:"applications"`
	Infrastructure []string `json:"infrastructure" yaml:"infrastructure"`
	External       []string `json:"external" yaml:"external"`
}

// BusinessProcess is the unit of BIA assessment.
type BusinessProcess struct {
	ID           string   `json:"id" yaml:"-"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description"`
	Owner        string   `json:"owner,omitempty" yaml:"owner"`
	Priority     Priority `json:"priority" yaml:"priority"`
	Category     string   `json:"category,omitempty" yaml:"category"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Stakeholders []string `json:"stakeholders" yaml:"stakeholders"`

	// Recovery metrics in hours.
	RTO int     `json:"rto" yaml:"rto"`
	RPO float64 `json:"rpo" yaml:"rpo"`
	MTD int     `json:"mtd" yaml:"mtd"`

	RevenueImpact      RevenueImpact `json:"revenueImpact" yaml:"revenueImpact"`
	FinancialImpact    ScoredImpact  `json:"financialImpact" yaml:"financialImpact"`
	OperationalImpact  ScoredImpact  `json:"operationalImpact" yaml:"operationalImpact"`
	ReputationalImpact ScoredImpact  `json:"reputationalImpact" yaml:"reputationalImpact"`

	ProcessDependencies Dependencies `json:"processDependencies" yaml:"processDependencies"`
	DataRequirements    string       `json:"dataRequirements,omitempty" yaml:"dataRequirements"`

	SupplyChainImpact   *ScoredImpact `json:"supplyChainImpact,omitempty" yaml:"supplyChainImpact"`
	CrossBorderImpact   *ScoredImpact `json:"crossBorderImpact,omitempty" yaml:"crossBorderImpact"`
	EnvironmentalImpact *ScoredImpact `json:"environmentalImpact,omitempty" yaml:"environmentalImpact"`

	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// Validate checks field ranges. It does not enforce rto <= mtd.
func (p *BusinessProcess) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProcess)
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return err
	}
	if p.RTO < 0 || p.RPO < 0 || p.MTD < 0 {
		return fmt.Errorf("%w: recovery metrics must be non-negative", ErrInvalidProcess)
	}
	r := p.RevenueImpact
	if r.Daily < 0 || r.Weekly < 0 || r.Monthly < 0 {
		return fmt.Errorf("%w: revenue impact must be non-negative", ErrInvalidProcess)
	}
	scores := map[string]*ScoredImpact{
		"financialImpact":     &p.FinancialImpact,
		"operationalImpact":   &p.OperationalImpact,
		"reputationalImpact":  &p.ReputationalImpact,
		"supplyChainImpact":   p.SupplyChainImpact,
		"crossBorderImpact":   p.CrossBorderImpact,
		"environmentalImpact": p.EnvironmentalImpact,
	}
	for name, s := range scores {
		if s == nil {
			continue
		}
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("%w: %s score %d outside 0-100", ErrInvalidProcess, name, s.Score)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p BusinessProcess) Clone() BusinessProcess {
	out := p
	out.Dependencies = cloneStrings(p.Dependencies)
	out.Stakeholders = cloneStrings(p.Stakeholders)
	out.ProcessDependencies = Dependencies{
		Applications:   cloneStrings(p.ProcessDependencies.Applications),
		Infrastructure: cloneStrings(p.ProcessDependencies.Infrastructure),
		External:       cloneStrings(p.ProcessDependencies.External),
	}
	out.SupplyChainImpact = cloneScored(p.SupplyChainImpact)
	out.CrossBorderImpact = cloneScored(p.CrossBorderImpact)
	out.EnvironmentalImpact = cloneScored(p.EnvironmentalImpact)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneScored(in *ScoredImpact) *ScoredImpact {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
