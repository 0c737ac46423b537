// internal/campaigns/store.go
package campaigns

import (
	"context"
	"database/sql"
	"fmt"

	"marketing-platform/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists campaigns in PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListByTenant returns every campaign for a tenant, highest priority first.
// Filtering happens in memory so the cache holds the full list once.
func (s *Store) ListByTenant(ctx context.Context, tenantID string) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, display_as, COALESCE(target_zone, ''),
		       target_pages, is_active, start_date, end_date, priority,
		       created_at, updated_at
		FROM campaigns
		WHERE tenant_id = $1
		ORDER BY priority DESC, created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var pages pq.StringArray
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.DisplayAs, &c.TargetZone,
			&pages, &c.IsActive, &c.StartDate, &c.EndDate, &c.Priority,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.TargetPages = []string(pages)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}

// Create inserts a campaign, assigning an id when missing.
func (s *Store) Create(ctx context.Context, c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, tenant_id, name, display_as, target_zone, target_pages,
			 is_active, start_date, end_date, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, NOW(), NOW())`,
		c.ID, c.TenantID, c.Name, c.DisplayAs, c.TargetZone,
		pq.Array(c.TargetPages), c.IsActive, c.StartDate, c.EndDate, c.Priority)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a campaign.
func (s *Store) Update(ctx context.Context, c *models.Campaign) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET name = $3, display_as = $4, target_zone = NULLIF($5, ''),
		    target_pages = $6, is_active = $7, start_date = $8, end_date = $9,
		    priority = $10, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`,
		c.ID, c.TenantID, c.Name, c.DisplayAs, c.TargetZone,
		pq.Array(c.TargetPages), c.IsActive, c.StartDate, c.EndDate, c.Priority)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a campaign.
func (s *Store) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FetchCampaigns makes Store satisfy the cache's Fetcher contract.
func (s *Store) FetchCampaigns(ctx context.Context, tenantID string) ([]models.Campaign, error) {
	return s.ListByTenant(ctx, tenantID)
}
