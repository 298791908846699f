package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, booking_number, site_id, customer_id, customer_name, phone_number,
	vehicle_number, vehicle_type, machine_number, pallet_number, status, start_time, end_time,
	duration_hours, duration_minutes, otp, payment, notes, special_instructions,
	created_by, updated_by, completed_by, created_at, updated_at`

// Store provides database operations for bookings using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a booking Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanBookingRow(row pgx.Row) (Booking, error) {
	var b Booking
	var otp, payment []byte

	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.SiteID, &b.CustomerID, &b.CustomerName, &b.PhoneNumber,
		&b.VehicleNumber, &b.VehicleType, &b.MachineNumber, &b.PalletNumber, &b.Status, &b.StartTime, &b.EndTime,
		&b.DurationHours, &b.DurationMinutes, &otp, &payment, &b.Notes, &b.SpecialInstructions,
		&b.CreatedBy, &b.UpdatedBy, &b.CompletedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	if err := json.Unmarshal(otp, &b.OTP); err != nil {
		return Booking{}, fmt.Errorf("booking: unmarshal otp: %w", err)
	}
	if len(payment) > 0 {
		if err := json.Unmarshal(payment, &b.Payment); err != nil {
			return Booking{}, fmt.Errorf("booking: unmarshal payment: %w", err)
		}
	}
	return b, nil
}

// CreateParams holds parameters for creating a booking.
type CreateParams struct {
	BookingNumber       string
	SiteID              uuid.UUID
	CustomerID          uuid.UUID
	CustomerName        string
	PhoneNumber         string
	VehicleNumber       string
	VehicleType         string
	MachineNumber       string
	PalletNumber        int
	OTP                 OTP
	Notes               string
	SpecialInstructions string
	CreatedBy           *uuid.UUID
}

// Create inserts a new active booking.
func (s *Store) Create(ctx context.Context, p CreateParams) (Booking, error) {
	otp, err := json.Marshal(p.OTP)
	if err != nil {
		return Booking{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO bookings (booking_number, site_id, customer_id, customer_name, phone_number,
			vehicle_number, vehicle_type, machine_number, pallet_number, status, otp, payment,
			notes, special_instructions, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active', $10, '{}', $11, $12, $13, $13)
		RETURNING `+bookingColumns,
		p.BookingNumber, p.SiteID, p.CustomerID, p.CustomerName, p.PhoneNumber,
		p.VehicleNumber, p.VehicleType, p.MachineNumber, p.PalletNumber, otp,
		p.Notes, p.SpecialInstructions, p.CreatedBy,
	)
	return scanBookingRow(row)
}

// GetByID returns a booking by ID.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBookingRow(row)
}

// GetByBookingNumber returns a booking by its human-facing booking number.
func (s *Store) GetByBookingNumber(ctx context.Context, bookingNumber string) (Booking, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_number = $1`, bookingNumber)
	return scanBookingRow(row)
}

// GetActiveByOTPCode returns the unique active booking whose OTP matches code.
func (s *Store) GetActiveByOTPCode(ctx context.Context, code string) (Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'active' AND otp ->> 'code' = $1`, code)
	return scanBookingRow(row)
}

// UpdateOTP persists a booking's OTP block (redemption or reissuance).
func (s *Store) UpdateOTP(ctx context.Context, id uuid.UUID, otp OTP) (Booking, error) {
	raw, err := json.Marshal(otp)
	if err != nil {
		return Booking{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings SET otp = $2, updated_at = now() WHERE id = $1
		RETURNING `+bookingColumns, id, raw)
	return scanBookingRow(row)
}

// Complete marks a booking completed, recording duration and payment.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, endTime time.Time, hours, minutes int, payment Payment, completedBy *uuid.UUID) (Booking, error) {
	raw, err := json.Marshal(payment)
	if err != nil {
		return Booking{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings SET status = 'completed', end_time = $2, duration_hours = $3, duration_minutes = $4,
			payment = $5, completed_by = $6, updated_by = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, endTime, hours, minutes, raw, completedBy)
	return scanBookingRow(row)
}

// Cancel marks a booking cancelled, appending reason to notes.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, notes string, actor *uuid.UUID) (Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings SET status = 'cancelled', notes = $2, updated_by = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, notes, actor)
	return scanBookingRow(row)
}

// AppendNotes overwrites a booking's notes field (used for extension notes).
func (s *Store) AppendNotes(ctx context.Context, id uuid.UUID, notes string, actor *uuid.UUID) (Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings SET notes = $2, updated_by = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, notes, actor)
	return scanBookingRow(row)
}

// ListFilters narrows ListBookings.
type ListFilters struct {
	SiteID        *uuid.UUID
	Status        string
	MachineNumber string
	VehicleNumber string
	DateFrom      *time.Time
	DateTo        *time.Time
	Search        string
}

// List returns bookings matching filters, paginated and sorted by
// startTime descending (spec.md §4.E.6).
func (s *Store) List(ctx context.Context, f ListFilters, limit, offset int) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE true`
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if f.SiteID != nil {
		add("site_id =", *f.SiteID)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if f.MachineNumber != "" {
		add("machine_number =", f.MachineNumber)
	}
	if f.VehicleNumber != "" {
		add("vehicle_number =", strings.ToUpper(f.VehicleNumber))
	}
	if f.DateFrom != nil {
		add("start_time >=", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("start_time <=", *f.DateTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (customer_name ILIKE $%d OR phone_number ILIKE $%d OR
			vehicle_number ILIKE $%d OR booking_number ILIKE $%d OR otp ->> 'code' ILIKE $%d)`, n, n, n, n, n)
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY start_time DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Count returns the total bookings matching filters (for pagination).
func (s *Store) Count(ctx context.Context, f ListFilters) (int, error) {
	query := `SELECT count(*) FROM bookings WHERE true`
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if f.SiteID != nil {
		add("site_id =", *f.SiteID)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if f.MachineNumber != "" {
		add("machine_number =", f.MachineNumber)
	}
	if f.VehicleNumber != "" {
		add("vehicle_number =", strings.ToUpper(f.VehicleNumber))
	}
	if f.DateFrom != nil {
		add("start_time >=", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("start_time <=", *f.DateTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (customer_name ILIKE $%d OR phone_number ILIKE $%d OR
			vehicle_number ILIKE $%d OR booking_number ILIKE $%d OR otp ->> 'code' ILIKE $%d)`, n, n, n, n, n)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Search performs a substring search across vehicle/pallet/otp/customer/phone.
func (s *Store) Search(ctx context.Context, field, query string, limit int) ([]Booking, error) {
	like := "%" + query + "%"
	var clause string
	switch field {
	case "vehicle":
		clause = "vehicle_number ILIKE $1"
	case "pallet":
		clause = "pallet_number::text ILIKE $1"
	case "otp":
		clause = "otp ->> 'code' ILIKE $1"
	case "customer":
		clause = "customer_name ILIKE $1"
	case "phone":
		clause = "phone_number ILIKE $1"
	default:
		clause = `(vehicle_number ILIKE $1 OR customer_name ILIKE $1 OR phone_number ILIKE $1
			OR booking_number ILIKE $1 OR otp ->> 'code' ILIKE $1)`
	}

	rows, err := s.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+clause+`
		ORDER BY start_time DESC LIMIT $2`, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ByMachine returns bookings for a machine, optionally filtered by status.
func (s *Store) ByMachine(ctx context.Context, machineNumber, status string) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE machine_number = $1`
	args := []any{machineNumber}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY start_time DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ByVehicle returns bookings for an uppercased plate.
func (s *Store) ByVehicle(ctx context.Context, plate string) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE vehicle_number = $1 ORDER BY start_time DESC`, strings.ToUpper(plate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Active returns all active bookings.
func (s *Store) Active(ctx context.Context) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = 'active' ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats aggregates booking totals and completed revenue over a date range.
func (s *Store) Stats(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE true),
			count(*) FILTER (WHERE status = 'active'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'cancelled'),
			coalesce(sum((payment->>'amount')::numeric) FILTER (WHERE status = 'completed'), 0)
		FROM bookings
		WHERE start_time BETWEEN $1 AND $2`, from, to).
		Scan(&stats.TotalBookings, &stats.ActiveBookings, &stats.CompletedBookings, &stats.CancelledBookings, &stats.TotalRevenue)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
