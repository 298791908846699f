package site

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const siteColumns = `id, site_code, name, address, latitude, longitude, operating_hours, pricing,
	declared_machine_count, declared_capacity, status, created_by, updated_by, created_at, updated_at`

// Store provides database operations for sites using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a site Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating a site.
type CreateParams struct {
	SiteCode             string
	Name                 string
	Address              string
	Latitude             *float64
	Longitude            *float64
	OperatingHours       OperatingHours
	Pricing              Pricing
	DeclaredMachineCount int
	DeclaredCapacity     int
	CreatedBy            *uuid.UUID
}

// UpdateParams holds the mutable fields of a site update.
type UpdateParams struct {
	Name                 string
	Address              string
	Latitude             *float64
	Longitude            *float64
	OperatingHours       OperatingHours
	Pricing              Pricing
	DeclaredMachineCount int
	DeclaredCapacity     int
	UpdatedBy            *uuid.UUID
}

func scanSiteRow(row pgx.Row) (Site, error) {
	var s Site
	var hoursRaw, pricingRaw []byte
	err := row.Scan(
		&s.ID, &s.SiteCode, &s.Name, &s.Address, &s.Latitude, &s.Longitude,
		&hoursRaw, &pricingRaw,
		&s.DeclaredMachineCount, &s.DeclaredCapacity, &s.Status,
		&s.CreatedBy, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return Site{}, err
	}
	if err := unmarshalJSONB(hoursRaw, &s.OperatingHours); err != nil {
		return Site{}, fmt.Errorf("decoding operating_hours: %w", err)
	}
	if err := unmarshalJSONB(pricingRaw, &s.Pricing); err != nil {
		return Site{}, fmt.Errorf("decoding pricing: %w", err)
	}
	return s, nil
}

func scanSiteRows(rows pgx.Rows) ([]Site, error) {
	defer rows.Close()
	var items []Site
	for rows.Next() {
		s, err := scanSiteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating site rows: %w", err)
	}
	return items, nil
}

func unmarshalJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// GetByID fetches an active (non-deleted) site.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1 AND deleted_at IS NULL`
	return scanSiteRow(s.pool.QueryRow(ctx, query, id))
}

// GetBySiteCode fetches a site by its human-facing code.
func (s *Store) GetBySiteCode(ctx context.Context, siteCode string) (Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE site_code = $1 AND deleted_at IS NULL`
	return scanSiteRow(s.pool.QueryRow(ctx, query, siteCode))
}

// List returns active sites, optionally filtered by status.
func (s *Store) List(ctx context.Context, status string, limit, offset int) ([]Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE deleted_at IS NULL`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	return scanSiteRows(rows)
}

// Count returns the number of active sites, optionally filtered by status.
func (s *Store) Count(ctx context.Context, status string) (int, error) {
	query := `SELECT count(*) FROM sites WHERE deleted_at IS NULL`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sites: %w", err)
	}
	return n, nil
}

// Create inserts a new site and returns the created row.
func (s *Store) Create(ctx context.Context, p CreateParams) (Site, error) {
	hoursRaw, err := json.Marshal(p.OperatingHours)
	if err != nil {
		return Site{}, fmt.Errorf("encoding operating_hours: %w", err)
	}
	pricingRaw, err := json.Marshal(p.Pricing)
	if err != nil {
		return Site{}, fmt.Errorf("encoding pricing: %w", err)
	}
	query := `INSERT INTO sites (site_code, name, address, latitude, longitude, operating_hours, pricing,
		declared_machine_count, declared_capacity, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + siteColumns
	row := s.pool.QueryRow(ctx, query,
		p.SiteCode, p.Name, p.Address, p.Latitude, p.Longitude, hoursRaw, pricingRaw,
		p.DeclaredMachineCount, p.DeclaredCapacity, p.CreatedBy,
	)
	return scanSiteRow(row)
}

// Update modifies an existing site's mutable fields.
func (s *Store) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Site, error) {
	hoursRaw, err := json.Marshal(p.OperatingHours)
	if err != nil {
		return Site{}, fmt.Errorf("encoding operating_hours: %w", err)
	}
	pricingRaw, err := json.Marshal(p.Pricing)
	if err != nil {
		return Site{}, fmt.Errorf("encoding pricing: %w", err)
	}
	query := `UPDATE sites SET name = $1, address = $2, latitude = $3, longitude = $4,
		operating_hours = $5, pricing = $6, declared_machine_count = $7, declared_capacity = $8,
		updated_by = $9, updated_at = now()
		WHERE id = $10 AND deleted_at IS NULL
		RETURNING ` + siteColumns
	row := s.pool.QueryRow(ctx, query,
		p.Name, p.Address, p.Latitude, p.Longitude, hoursRaw, pricingRaw,
		p.DeclaredMachineCount, p.DeclaredCapacity, p.UpdatedBy, id,
	)
	return scanSiteRow(row)
}

// SetStatus transitions a site to a new status.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status string, updatedBy *uuid.UUID) (Site, error) {
	query := `UPDATE sites SET status = $1, updated_by = $2, updated_at = now()
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING ` + siteColumns
	row := s.pool.QueryRow(ctx, query, status, updatedBy, id)
	return scanSiteRow(row)
}

// SoftDelete marks a site deleted without removing its row.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sites SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft-deleting site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete permanently removes a site row.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountActiveMachines counts non-deleted machines at a site (used to block deletion of non-empty sites).
func (s *Store) CountActiveMachines(ctx context.Context, siteID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM machines WHERE site_id = $1 AND deleted_at IS NULL`, siteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting site machines: %w", err)
	}
	return n, nil
}

// CountActiveBookings counts active bookings at a site (used to block deactivation).
func (s *Store) CountActiveBookings(ctx context.Context, siteID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE site_id = $1 AND status = 'active'`, siteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting site active bookings: %w", err)
	}
	return n, nil
}

// SetMachinesOffline forces every non-deleted machine at siteID to status
// 'offline', as part of site deactivation (spec.md §4.F).
func (s *Store) SetMachinesOffline(ctx context.Context, siteID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE machines SET status = 'offline', updated_at = now()
		WHERE site_id = $1 AND deleted_at IS NULL AND status <> 'offline'`, siteID)
	if err != nil {
		return fmt.Errorf("forcing site machines offline: %w", err)
	}
	return nil
}

// ForceDeleteWithDependents atomically removes a site's bookings, machines,
// and the site row itself, for the force=true path of DeletePermanently
// (spec.md §4.F). All three deletes run in one transaction so a site is
// never left dangling with orphaned machine/booking rows, mirroring
// pkg/machine's WithLockedMachine transaction pattern.
func (s *Store) ForceDeleteWithDependents(ctx context.Context, siteID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("site: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("deleting site bookings: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM machines WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("deleting site machines: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM sites WHERE id = $1`, siteID)
	if err != nil {
		return fmt.Errorf("deleting site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("site: commit: %w", err)
	}
	return nil
}

// AssignUser upserts a user's site assignment. If the user has no existing
// assignments at all, the caller is responsible for flagging it as primary.
func (s *Store) AssignUser(ctx context.Context, siteID, userID uuid.UUID, siteRole string, permissions []string, isPrimary bool) (UserAssignment, error) {
	query := `INSERT INTO site_user_assignments (site_id, user_id, site_role, permissions, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (site_id, user_id) DO UPDATE SET site_role = $3, permissions = $4, is_primary = $5
		RETURNING site_id, user_id, site_role, permissions, is_primary, assigned_at`
	var a UserAssignment
	err := s.pool.QueryRow(ctx, query, siteID, userID, siteRole, permissions, isPrimary).Scan(
		&a.SiteID, &a.UserID, &a.SiteRole, &a.Permissions, &a.IsPrimary, &a.AssignedAt,
	)
	return a, err
}

// RemoveUser deletes a user's assignment to a site.
func (s *Store) RemoveUser(ctx context.Context, siteID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM site_user_assignments WHERE site_id = $1 AND user_id = $2`, siteID, userID)
	return err
}

// CountUserAssignments returns how many sites a user is already assigned to.
func (s *Store) CountUserAssignments(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM site_user_assignments WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// RemoveUserFromAllSites deletes every assignment for a user (used when a user is deleted).
func (s *Store) RemoveUserFromAllSites(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM site_user_assignments WHERE user_id = $1`, userID)
	return err
}

// Statistics gathers on-demand counts for a site. Revenue figures come from
// completed bookings' payment.amount jsonb field.
func (s *Store) Statistics(ctx context.Context, siteID uuid.UUID) (Statistics, error) {
	stats := Statistics{SiteID: siteID}
	err := s.pool.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE status = 'online')
		FROM machines WHERE site_id = $1 AND deleted_at IS NULL`, siteID,
	).Scan(&stats.MachinesTotal, &stats.MachinesOnline)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting machines: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE start_time >= date_trunc('day', now())),
		count(*) FILTER (WHERE status = 'active'),
		coalesce(sum((payment->>'amount')::numeric) FILTER (WHERE status = 'completed'), 0),
		coalesce(sum((payment->>'amount')::numeric) FILTER (WHERE status = 'completed' AND start_time >= date_trunc('day', now())), 0)
		FROM bookings WHERE site_id = $1`, siteID,
	).Scan(&stats.BookingsTotal, &stats.BookingsToday, &stats.BookingsActive, &stats.RevenueTotal, &stats.RevenueToday)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting bookings: %w", err)
	}
	return stats, nil
}
