package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"continuity.org/internal/bia"
)

// ProcessRepository implements bia.Repository on the business_processes relation.
type ProcessRepository struct {
	c *Client
}

// NewProcessRepository wraps c.
func NewProcessRepository(c *Client) *ProcessRepository { return &ProcessRepository{c: c} }

var _ bia.Repository = (*ProcessRepository)(nil)

type processRow struct {
	ID                  string            `json:"id"`
	OrganizationID      string            `json:"organization_id"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Owner               string            `json:"owner"`
	Priority            string            `json:"priority"`
	Category            string            `json:"category"`
	Dependencies        []string          `json:"dependencies"`
	Stakeholders        []string          `json:"stakeholders"`
	RTO                 int               `json:"rto"`
	RPO                 float64           `json:"rpo"`
	MTD                 int               `json:"mtd"`
	RevenueImpact       bia.RevenueImpact `json:"revenue_impact"`
	FinancialImpact     bia.ScoredImpact  `json:"financial_impact"`
	OperationalImpact   bia.ScoredImpact  `json:"operational_impact"`
	ReputationalImpact  bia.ScoredImpact  `json:"reputational_impact"`
	ProcessDependencies bia.Dependencies  `json:"process_dependencies"`
	DataRequirements    string            `json:"data_requirements"`
	SupplyChainImpact   *bia.ScoredImpact `json:"supply_chain_impact"`
	CrossBorderImpact   *bia.ScoredImpact `json:"cross_border_impact"`
	EnvironmentalImpact *bia.ScoredImpact `json:"environmental_impact"`
	UpdatedAt           *time.Time        `json:"updated_at,omitempty"`
}

func rowFromProcess(orgID string, p bia.BusinessProcess) processRow {
	r := processRow{
		ID:                  p.ID,
		OrganizationID:      orgID,
		Name:                p.Name,
		Description:         p.Description,
		Owner:               p.Owner,
		Priority:            string(p.Priority),
		Category:            p.Category,
		Dependencies:        p.Dependencies,
		Stakeholders:        p.Stakeholders,
		RTO:                 p.RTO,
		RPO:                 p.RPO,
		MTD:                 p.MTD,
		RevenueImpact:       p.RevenueImpact,
		FinancialImpact:     p.FinancialImpact,
		OperationalImpact:   p.OperationalImpact,
		ReputationalImpact:  p.ReputationalImpact,
		ProcessDependencies: p.ProcessDependencies,
		DataRequirements:    p.DataRequirements,
		SupplyChainImpact:   p.SupplyChainImpact,
		CrossBorderImpact:   p.CrossBorderImpact,
		EnvironmentalImpact: p.EnvironmentalImpact,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		r.UpdatedAt = &t
	}
	return r
}

func (r processRow) process() bia.BusinessProcess {
	p := bia.BusinessProcess{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Owner:               r.Owner,
		Priority:            bia.Priority(r.Priority),
		Category:            r.Category,
		Dependencies:        r.Dependencies,
		Stakeholders:        r.Stakeholders,
		RTO:                 r.RTO,
		RPO:                 r.RPO,
		MTD:                 r.MTD,
		RevenueImpact:       r.RevenueImpact,
		FinancialImpact:     r.FinancialImpact,
		OperationalImpact:   r.OperationalImpact,
		ReputationalImpact:  r.ReputationalImpact,
		ProcessDependencies: r.ProcessDependencies,
		DataRequirements:    r.DataRequirements,
		SupplyChainImpact:   r.SupplyChainImpact,
		CrossBorderImpact:   r.CrossBorderImpact,
		EnvironmentalImpact: r.EnvironmentalImpact,
	}
	if r.UpdatedAt != nil {
		p.UpdatedAt = *r.UpdatedAt
	}
	return p
}

// ListProcesses implements bia.Repository.
func (s *ProcessRepository) ListProcesses(ctx context.Context, orgID string) ([]bia.BusinessProcess, error) {
	var rows []processRow
	q := Query{Eq: map[string]string{"organization_id": orgID}, Order: "name"}
	if err := s.c.Select(ctx, "business_processes", q, &rows); err != nil {
		return nil, err
	}
	out := make([]bia.BusinessProcess, len(rows))
	for i, r := range rows {
		out[i] = r.process()
	}
	return out, nil
}

// UpsertProcess implements bia.Repository.
func (s *ProcessRepository) UpsertProcess(ctx context.Context, orgID string, p bia.BusinessProcess) (bia.BusinessProcess, error) {
	var stored processRow
	if err := s.c.Upsert(ctx, "business_processes", rowFromProcess(orgID, p), &stored); err != nil {
		return bia.BusinessProcess{}, err
	}
	return stored.process(), nil
}

// DeleteProcess implements bia.Repository.
func (s *ProcessRepository) DeleteProcess(ctx context.Context, orgID, id string) error {
	err := s.c.Delete(ctx, "business_processes", map[string]string{"organization_id": orgID, "id": id})
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", bia.ErrNotFound, err)
	}
	return err
}
