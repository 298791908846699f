package customer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id, customer_code, first_name, last_name, phone, email, vehicles, membership,
	total_bookings, total_amount, last_booking_at, status, deactivation_reason,
	created_by, updated_by, created_at, updated_at`

// Store provides database operations for customers using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a customer Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating a customer.
type CreateParams struct {
	CustomerCode string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	Vehicles     []Vehicle
	CreatedBy    *uuid.UUID
}

func scanCustomerRow(row pgx.Row) (Customer, error) {
	var c Customer
	var vehiclesRaw, membershipRaw []byte
	err := row.Scan(
		&c.ID, &c.CustomerCode, &c.FirstName, &c.LastName, &c.Phone, &c.Email,
		&vehiclesRaw, &membershipRaw,
		&c.TotalBookings, &c.TotalAmount, &c.LastBookingAt, &c.Status, &c.DeactivationReason,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Customer{}, err
	}
	if len(vehiclesRaw) > 0 {
		if err := json.Unmarshal(vehiclesRaw, &c.Vehicles); err != nil {
			return Customer{}, fmt.Errorf("decoding vehicles: %w", err)
		}
	}
	if len(membershipRaw) > 0 {
		var m Membership
		if err := json.Unmarshal(membershipRaw, &m); err != nil {
			return Customer{}, fmt.Errorf("decoding membership: %w", err)
		}
		c.Membership = &m
	}
	return c, nil
}

func scanCustomerRows(rows pgx.Rows) ([]Customer, error) {
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		c, err := scanCustomerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customer rows: %w", err)
	}
	return items, nil
}

// GetByID fetches an active (non-deleted) customer.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND deleted_at IS NULL`
	return scanCustomerRow(s.pool.QueryRow(ctx, query, id))
}

// GetByActivePhone fetches the active customer with the given phone number.
func (s *Store) GetByActivePhone(ctx context.Context, phone string) (Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1 AND status = 'active' AND deleted_at IS NULL`
	return scanCustomerRow(s.pool.QueryRow(ctx, query, phone))
}

// Create inserts a new customer.
func (s *Store) Create(ctx context.Context, p CreateParams) (Customer, error) {
	vehiclesRaw, err := json.Marshal(p.Vehicles)
	if err != nil {
		return Customer{}, fmt.Errorf("encoding vehicles: %w", err)
	}
	query := `INSERT INTO customers (customer_code, first_name, last_name, phone, email, vehicles, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, p.CustomerCode, p.FirstName, p.LastName, p.Phone, p.Email, vehiclesRaw, p.CreatedBy)
	return scanCustomerRow(row)
}

// UpdateName overwrites the customer's first/last name (operator-authoritative
// per spec.md §4.E.1.3).
func (s *Store) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string, updatedBy *uuid.UUID) (Customer, error) {
	query := `UPDATE customers SET first_name = $1, last_name = $2, updated_by = $3, updated_at = now()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, firstName, lastName, updatedBy, id)
	return scanCustomerRow(row)
}

// ReplaceVehicles overwrites a customer's vehicle list wholesale. Used by
// AddVehicle/RemoveVehicle after mutating the in-memory slice, keeping the
// jsonb column and the returned Customer consistent in one round trip.
func (s *Store) ReplaceVehicles(ctx context.Context, id uuid.UUID, vehicles []Vehicle, updatedBy *uuid.UUID) (Customer, error) {
	raw, err := json.Marshal(vehicles)
	if err != nil {
		return Customer{}, fmt.Errorf("encoding vehicles: %w", err)
	}
	query := `UPDATE customers SET vehicles = $1, updated_by = $2, updated_at = now()
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, raw, updatedBy, id)
	return scanCustomerRow(row)
}

// ReplaceMembership overwrites the customer's membership block. membership
// may be nil to clear it (not currently exercised, but keeps the store
// symmetric with ReplaceVehicles).
func (s *Store) ReplaceMembership(ctx context.Context, id uuid.UUID, membership *Membership, updatedBy *uuid.UUID) (Customer, error) {
	var raw []byte
	if membership != nil {
		var err error
		raw, err = json.Marshal(membership)
		if err != nil {
			return Customer{}, fmt.Errorf("encoding membership: %w", err)
		}
	}
	query := `UPDATE customers SET membership = $1, updated_by = $2, updated_at = now()
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, raw, updatedBy, id)
	return scanCustomerRow(row)
}

// RecordBooking increments the booking counters after a booking is created.
func (s *Store) RecordBooking(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE customers SET total_bookings = total_bookings + 1, last_booking_at = now()
		WHERE id = $1`, id)
	return err
}

// RecordPaymentAmount adds amount to the customer's lifetime total, called on
// booking completion.
func (s *Store) RecordPaymentAmount(ctx context.Context, id uuid.UUID, amount float64) error {
	_, err := s.pool.Exec(ctx, `UPDATE customers SET total_amount = total_amount + $1 WHERE id = $2`, amount, id)
	return err
}

// SoftDelete transitions a customer to inactive with a reason, without
// removing the row (spec.md §4.C.5).
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE customers SET status = 'inactive', deactivation_reason = $1, deleted_at = now()
		WHERE id = $2 AND deleted_at IS NULL`, reason, id)
	if err != nil {
		return fmt.Errorf("soft-deleting customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Search performs a case-insensitive substring search over the given field
// type, capped at the caller-provided limit.
func (s *Store) Search(ctx context.Context, field, query string, limit int) ([]Customer, error) {
	like := "%" + query + "%"
	var sql string
	switch field {
	case "phone":
		sql = `SELECT ` + customerColumns + ` FROM customers WHERE deleted_at IS NULL AND phone ILIKE $1 ORDER BY created_at DESC LIMIT $2`
	case "name":
		sql = `SELECT ` + customerColumns + ` FROM customers WHERE deleted_at IS NULL AND (first_name ILIKE $1 OR last_name ILIKE $1) ORDER BY created_at DESC LIMIT $2`
	case "vehicle":
		sql = `SELECT ` + customerColumns + ` FROM customers WHERE deleted_at IS NULL
			AND EXISTS (SELECT 1 FROM jsonb_array_elements(vehicles) v WHERE v->>'plate' ILIKE $1)
			ORDER BY created_at DESC LIMIT $2`
	default: // "all"
		sql = `SELECT ` + customerColumns + ` FROM customers WHERE deleted_at IS NULL
			AND (phone ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1
				OR EXISTS (SELECT 1 FROM jsonb_array_elements(vehicles) v WHERE v->>'plate' ILIKE $1))
			ORDER BY created_at DESC LIMIT $2`
	}
	rows, err := s.pool.Query(ctx, sql, like, limit)
	if err != nil {
		return nil, fmt.Errorf("searching customers: %w", err)
	}
	return scanCustomerRows(rows)
}

// CountActiveBookingsForVehicle counts active bookings against a vehicle
// plate, used to gate RemoveVehicle.
func (s *Store) CountActiveBookingsForVehicle(ctx context.Context, plate string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE vehicle_number = $1 AND status = 'active'`, plate).Scan(&n)
	return n, err
}

// CountActiveBookingsForCustomer counts a customer's active bookings, used to
// gate SoftDeleteCustomer.
func (s *Store) CountActiveBookingsForCustomer(ctx context.Context, customerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE customer_id = $1 AND status = 'active'`, customerID).Scan(&n)
	return n, err
}

// GetByMembershipNumber fetches the customer whose membership block carries
// the given membership number, active or not (the service layer checks
// activity/expiry itself so it can return a uniform validation failure).
func (s *Store) GetByMembershipNumber(ctx context.Context, membershipNumber string) (Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers
		WHERE deleted_at IS NULL AND membership->>'membershipNumber' = $1`
	return scanCustomerRow(s.pool.QueryRow(ctx, query, membershipNumber))
}

// MembershipNumberInUse reports whether candidate is already in use by an
// active membership, for idgen's uniqueness-check callback.
func (s *Store) MembershipNumberInUse(ctx context.Context, candidate string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM customers
		WHERE membership IS NOT NULL
		AND membership->>'membershipNumber' = $1
		AND (membership->>'isActive')::boolean IS TRUE`, candidate).Scan(&n)
	return n > 0, err
}

// InsertMembershipPayment appends a ledger row. The ledger is append-only
// and never referenced back by the customer row.
func (s *Store) InsertMembershipPayment(ctx context.Context, p MembershipPayment) (MembershipPayment, error) {
	query := `INSERT INTO membership_payments
		(customer_id, customer_name, customer_phone, membership_number, type, amount, method, transaction_ref,
		 start_date, expiry_date, validity_term_months, covered_vehicle_types, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, customer_id, customer_name, customer_phone, membership_number, type, amount, method,
			coalesce(transaction_ref, ''), start_date, expiry_date, validity_term_months, covered_vehicle_types,
			status, created_by, created_at`
	var row MembershipPayment
	err := s.pool.QueryRow(ctx, query,
		p.CustomerID, p.CustomerName, p.CustomerPhone, p.MembershipNumber, p.Type, p.Amount, p.Method, nullIfEmpty(p.TransactionRef),
		p.StartDate, p.ExpiryDate, p.ValidityTermMonths, p.CoveredVehicleTypes, p.Status, p.CreatedBy,
	).Scan(
		&row.ID, &row.CustomerID, &row.CustomerName, &row.CustomerPhone, &row.MembershipNumber, &row.Type, &row.Amount, &row.Method,
		&row.TransactionRef, &row.StartDate, &row.ExpiryDate, &row.ValidityTermMonths, &row.CoveredVehicleTypes,
		&row.Status, &row.CreatedBy, &row.CreatedAt,
	)
	if err != nil {
		return MembershipPayment{}, fmt.Errorf("inserting membership payment: %w", err)
	}
	return row, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
