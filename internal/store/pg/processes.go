package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"continuity.org/internal/bia"
)

var _ bia.Repository = (*Store)(nil)

type processRecord struct {
	ID                  string                   `db:"id"`
	OrganizationID      string                   `db:"organization_id"`
	Name                string                   `db:"name"`
	Description         string                   `db:"description"`
	Owner               string                   `db:"owner"`
	Priority            string                   `db:"priority"`
	Category            string                   `db:"category"`
	Dependencies        jsonb[[]string]          `db:"dependencies"`
	Stakeholders        jsonb[[]string]          `db:"stakeholders"`
	RTO                 int                      `db:"rto"`
	RPO                 float64                  `db:"rpo"`
	MTD                 int                      `db:"mtd"`
	RevenueImpact       jsonb[bia.RevenueImpact] `db:"revenue_impact"`
	FinancialImpact     jsonb[bia.ScoredImpact]  `db:"financial_impact"`
	OperationalImpact   jsonb[bia.ScoredImpact]  `db:"operational_impact"`
	ReputationalImpact  jsonb[bia.ScoredImpact]  `db:"reputational_impact"`
	ProcessDependencies jsonb[bia.Dependencies]  `db:"process_dependencies"`
	DataRequirements    string                   `db:"data_requirements"`
	SupplyChainImpact   jsonb[*bia.ScoredImpact] `db:"supply_chain_impact"`
	CrossBorderImpact   jsonb[*bia.ScoredImpact] `db:"cross_border_impact"`
	EnvironmentalImpact jsonb[*bia.ScoredImpact] `db:"environmental_impact"`
	UpdatedAt           time.Time                `db:"updated_at"`
}

const processColumns = `id, organization_id, name, description, owner, priority, category,
	dependencies, stakeholders, rto, rpo, mtd, revenue_impact, financial_impact,
	operational_impact, reputational_impact, process_dependencies, data_requirements,
	supply_chain_impact, cross_border_impact, environmental_impact, updated_at`

func recordFromProcess(orgID string, p bia.BusinessProcess) processRecord {
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return processRecord{
		ID:                  p.ID,
		OrganizationID:      orgID,
		Name:                p.Name,
		Description:         p.Description,
		Owner:               p.Owner,
		Priority:            string(p.Priority),
		Category:            p.Category,
		Dependencies:        jsonb[[]string]{p.Dependencies},
		Stakeholders:        jsonb[[]string]{p.Stakeholders},
		RTO:                 p.RTO,
		RPO:                 p.RPO,
		MTD:                 p.MTD,
		RevenueImpact:       jsonb[bia.RevenueImpact]{p.RevenueImpact},
		FinancialImpact:     jsonb[bia.ScoredImpact]{p.FinancialImpact},
		OperationalImpact:   jsonb[bia.ScoredImpact]{p.OperationalImpact},
		ReputationalImpact:  jsonb[bia.ScoredImpact]{p.ReputationalImpact},
		ProcessDependencies: jsonb[bia.Dependencies]{p.ProcessDependencies},
		DataRequirements:    p.DataRequirements,
		SupplyChainImpact:   jsonb[*bia.ScoredImpact]{p.SupplyChainImpact},
		CrossBorderImpact:   jsonb[*bia.ScoredImpact]{p.CrossBorderImpact},
		EnvironmentalImpact: jsonb[*bia.ScoredImpact]{p.EnvironmentalImpact},
		UpdatedAt:           updated,
	}
}

func (r processRecord) process() bia.BusinessProcess {
	return bia.BusinessProcess{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		Owner:               r.Owner,
		Priority:            bia.Priority(r.Priority),
		Category:            r.Category,
		Dependencies:        r.Dependencies.V,
		Stakeholders:        r.Stakeholders.V,
		RTO:                 r.RTO,
		RPO:                 r.RPO,
		MTD:                 r.MTD,
		RevenueImpact:       r.RevenueImpact.V,
		FinancialImpact:     r.FinancialImpact.V,
		OperationalImpact:   r.OperationalImpact.V,
		ReputationalImpact:  r.ReputationalImpact.V,
		ProcessDependencies: r.ProcessDependencies.V,
		DataRequirements:    r.DataRequirements,
		SupplyChainImpact:   r.SupplyChainImpact.V,
		CrossBorderImpact:   r.CrossBorderImpact.V,
		EnvironmentalImpact: r.EnvironmentalImpact.V,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ListProcesses implements bia.Repository.
func (s *Store) ListProcesses(ctx context.Context, orgID string) ([]bia.BusinessProcess, error) {
	var rows []processRecord
	err := s.db.SelectContext(ctx, &rows, `select `+processColumns+`
		from business_processes
		where organization_id = $1
		order by name, id`, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]bia.BusinessProcess, len(rows))
	for i, r := range rows {
		out[i] = r.process()
	}
	return out, nil
}

// UpsertProcess implements bia.Repository.
func (s *Store) UpsertProcess(ctx context.Context, orgID string, p bia.BusinessProcess) (bia.BusinessProcess, error) {
	rec := recordFromProcess(orgID, p)
	query, args, err := s.db.BindNamed(`
		insert into business_processes (`+processColumns+`)
		values (:id, :organization_id, :name, :description, :owner, :priority, :category,
			:dependencies, :stakeholders, :rto, :rpo, :mtd, :revenue_impact, :financial_impact,
			:operational_impact, :reputational_impact, :process_dependencies, :data_requirements,
			:supply_chain_impact, :cross_border_impact, :environmental_impact, :updated_at)
		on conflict (id) do update set
			name = excluded.name,
			description = excluded.description,
			owner = excluded.owner,
			priority = excluded.priority,
			category = excluded.category,
			dependencies = excluded.dependencies,
			stakeholders = excluded.stakeholders,
			rto = excluded.rto,
			rpo = excluded.rpo,
			mtd = excluded.mtd,
			revenue_impact = excluded.revenue_impact,
			financial_impact = excluded.financial_impact,
			operational_impact = excluded.operational_impact,
			reputational_impact = excluded.reputational_impact,
			process_dependencies = excluded.process_dependencies,
			data_requirements = excluded.data_requirements,
			supply_chain_impact = excluded.supply_chain_impact,
			cross_border_impact = excluded.cross_border_impact,
			environmental_impact = excluded.environmental_impact,
			updated_at = excluded.updated_at
		where business_processes.organization_id = excluded.organization_id
		returning `+processColumns, rec)
	if err != nil {
		return bia.BusinessProcess{}, err
	}
	var stored processRecord
	if err := s.db.GetContext(ctx, &stored, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return bia.BusinessProcess{}, fmt.Errorf("%w: process %s belongs to another organization", bia.ErrNotFound, p.ID)
		}
		return bia.BusinessProcess{}, err
	}
	return stored.process(), nil
}

// DeleteProcess implements bia.Repository.
func (s *Store) DeleteProcess(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from business_processes where organization_id = $1 and id = $2`, orgID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: process %s", bia.ErrNotFound, id)
	}
	return nil
}
