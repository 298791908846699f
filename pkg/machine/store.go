package machine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parklane/parkcore/pkg/site"
)

const machineColumns = `id, site_id, machine_code, kinematic_type, target_vehicle_type, status,
	specifications, capacity_total, capacity_available, capacity_occupied, capacity_maintenance,
	pallets, operating_hours, pricing_override, last_heartbeat, firmware_version, connection_status,
	service_history, created_by, updated_by, created_at, updated_at`

// Store provides database operations for machines using the global pool.
// Pallet mutations go through WithLockedMachine, which takes a row lock for
// the lifetime of the mutation (spec.md §5's per-pallet serialization
// requirement collapses to per-machine serialization here, since all of a
// machine's pallets live in one jsonb column).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a machine Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanMachineRow(row pgx.Row) (Machine, error) {
	var m Machine
	var specs, pallets, hours []byte
	var pricing []byte

	err := row.Scan(
		&m.ID, &m.SiteID, &m.MachineCode, &m.KinematicType, &m.TargetVehicleType, &m.Status,
		&specs, &m.Capacity.Total, &m.Capacity.Available, &m.Capacity.Occupied, &m.Capacity.Maintenance,
		&pallets, &hours, &pricing, &m.LastHeartbeat, &m.FirmwareVersion, &m.ConnectionStatus,
		&m.ServiceHistory, &m.CreatedBy, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return Machine{}, err
	}
	if err := unmarshalJSONB(specs, &m.Specifications); err != nil {
		return Machine{}, fmt.Errorf("machine: unmarshal specifications: %w", err)
	}
	if err := unmarshalJSONB(pallets, &m.Pallets); err != nil {
		return Machine{}, fmt.Errorf("machine: unmarshal pallets: %w", err)
	}
	if err := unmarshalJSONB(hours, &m.OperatingHours); err != nil {
		return Machine{}, fmt.Errorf("machine: unmarshal operating_hours: %w", err)
	}
	if len(pricing) > 0 {
		if err := json.Unmarshal(pricing, &m.PricingOverride); err != nil {
			return Machine{}, fmt.Errorf("machine: unmarshal pricing_override: %w", err)
		}
	}
	return m, nil
}

func unmarshalJSONB(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// CreateParams holds parameters for creating a machine.
type CreateParams struct {
	SiteID            uuid.UUID
	MachineCode       string
	KinematicType     string
	TargetVehicleType string
	Specifications    Specifications
	Pallets           []Pallet
	OperatingHours    site.OperatingHours
	CreatedBy         *uuid.UUID
}

// GetByID returns the machine with the given ID, unlocked.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Machine, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanMachineRow(row)
}

// GetByMachineCode returns the machine with the given site-scoped code.
func (s *Store) GetByMachineCode(ctx context.Context, siteID uuid.UUID, code string) (Machine, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+machineColumns+` FROM machines
		WHERE site_id = $1 AND machine_code = $2 AND deleted_at IS NULL`, siteID, code)
	return scanMachineRow(row)
}

// List returns machines for a site (or all sites if siteID is nil),
// optionally filtered by status.
func (s *Store) List(ctx context.Context, siteID *uuid.UUID, status string, limit, offset int) ([]Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines WHERE deleted_at IS NULL`
	args := []any{}
	if siteID != nil {
		args = append(args, *siteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY machine_code LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		m, err := scanMachineRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListStaleHeartbeats returns machines marked online whose last heartbeat is
// older than threshold (or missing entirely), for the stale-heartbeat alert
// sweep.
func (s *Store) ListStaleHeartbeats(ctx context.Context, now time.Time, threshold time.Duration) ([]Machine, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+machineColumns+` FROM machines
		WHERE deleted_at IS NULL AND status = 'online'
		AND (last_heartbeat IS NULL OR last_heartbeat < $1)`, now.Add(-threshold))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		m, err := scanMachineRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAvailable returns online machines with available capacity for a
// vehicle type, optionally scoped to a site, sorted by capacity.available
// descending per spec.md §4.D.6.
func (s *Store) ListAvailable(ctx context.Context, siteID *uuid.UUID, vehicleType string) ([]Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines
		WHERE deleted_at IS NULL AND status = 'online' AND capacity_available > 0`
	args := []any{}
	if siteID != nil {
		args = append(args, *siteID)
		query += fmt.Sprintf(" AND site_id = $%d", len(args))
	}
	query += " ORDER BY capacity_available DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		m, err := scanMachineRow(rows)
		if err != nil {
			return nil, err
		}
		if containsString(m.Specifications.SupportedVehicleTypes, vehicleType) {
			out = append(out, m)
		}
	}
	return out, rows.Err()
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Create inserts a new machine.
func (s *Store) Create(ctx context.Context, p CreateParams) (Machine, error) {
	capacity := RecomputeCapacity(p.Pallets)
	specs, err := json.Marshal(p.Specifications)
	if err != nil {
		return Machine{}, err
	}
	pallets, err := json.Marshal(p.Pallets)
	if err != nil {
		return Machine{}, err
	}
	hours, err := json.Marshal(p.OperatingHours)
	if err != nil {
		return Machine{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO machines (site_id, machine_code, kinematic_type, target_vehicle_type, status,
			specifications, capacity_total, capacity_available, capacity_occupied, capacity_maintenance,
			pallets, operating_hours, connection_status, service_history, created_by, updated_by)
		VALUES ($1, $2, $3, $4, 'offline', $5, $6, $7, $8, $9, $10, $11, 'disconnected', '[]', $12, $12)
		RETURNING `+machineColumns,
		p.SiteID, p.MachineCode, p.KinematicType, p.TargetVehicleType,
		specs, capacity.Total, capacity.Available, capacity.Occupied, capacity.Maintenance,
		pallets, hours, p.CreatedBy,
	)
	return scanMachineRow(row)
}

// UpdateHeartbeat records a heartbeat ping and brings the machine online.
func (s *Store) UpdateHeartbeat(ctx context.Context, id uuid.UUID, now time.Time, firmwareVersion, connectionStatus string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE machines SET last_heartbeat = $2, firmware_version = COALESCE(NULLIF($3, ''), firmware_version),
			connection_status = $4, status = CASE WHEN status = 'offline' THEN 'online' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, now, firmwareVersion, connectionStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetStatus updates a machine's top-level status (e.g. offline/error),
// independent of any pallet mutation.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status string, updatedBy *uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE machines SET status = $2, updated_by = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id, status, updatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SoftDelete marks a machine deleted.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE machines SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// WithLockedMachine runs fn with the machine row locked via SELECT ... FOR
// UPDATE for the duration of the transaction, then persists the mutated
// pallets/capacity/status fields fn leaves on the returned Machine. This is
// the serialization point for all pallet-level mutations (occupy, release,
// maintenance): concurrent callers on the same machine block on the row
// lock rather than racing on the shared pallets array.
func (s *Store) WithLockedMachine(ctx context.Context, id uuid.UUID, fn func(m *Machine) error) (Machine, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Machine{}, fmt.Errorf("machine: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	m, err := scanMachineRow(row)
	if err != nil {
		return Machine{}, err
	}

	if err := fn(&m); err != nil {
		return Machine{}, err
	}
	m.Capacity = RecomputeCapacity(m.Pallets)

	pallets, err := json.Marshal(m.Pallets)
	if err != nil {
		return Machine{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE machines SET pallets = $2, status = $3,
			capacity_total = $4, capacity_available = $5, capacity_occupied = $6, capacity_maintenance = $7,
			updated_at = now()
		WHERE id = $1`,
		id, pallets, m.Status, m.Capacity.Total, m.Capacity.Available, m.Capacity.Occupied, m.Capacity.Maintenance)
	if err != nil {
		return Machine{}, fmt.Errorf("machine: persist pallets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Machine{}, fmt.Errorf("machine: commit: %w", err)
	}
	return m, nil
}
