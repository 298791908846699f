// Package booking implements the booking lifecycle and OTP flow described
// above in booking.go's doc comment.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/idgen"
	"github.com/parklane/parkcore/internal/validation"
	"github.com/parklane/parkcore/pkg/customer"
	"github.com/parklane/parkcore/pkg/machine"
)

// Service implements the booking operations of spec.md §4.E.
type Service struct {
	store     *Store
	machines  *machine.Service
	machineSt *machine.Store
	customers *customer.Service
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a booking Service.
func NewService(store *Store, machines *machine.Service, machineSt *machine.Store, customers *customer.Service, logger *slog.Logger) *Service {
	return &Service{store: store, machines: machines, machineSt: machineSt, customers: customers, logger: logger, now: time.Now}
}

// CreateRequest holds the inputs for creating a booking.
type CreateRequest struct {
	SiteID              uuid.UUID
	FirstName           string
	LastName            string
	PhoneNumber         string
	VehicleNumber       string
	VehicleType         string
	MachineNumber       string
	PalletNumber        int
	SpecialInstructions string
}

// CreateResult carries the created booking plus response-layer flags about
// what happened to the underlying customer record.
type CreateResult struct {
	Booking             Booking
	IsNewCustomer       bool
	CustomerNameUpdated bool
}

// CreateBooking implements spec.md §4.E.1's nine-step algorithm. The pallet
// occupy call is best-effort: its failure is logged and never rolls back
// the booking, per the cross-aggregate consistency model of spec.md §5.
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest, actor uuid.UUID) (CreateResult, error) {
	plate := validation.NormalizePlate(req.VehicleNumber)

	cust, isNew, nameUpdated, err := s.customers.ResolveForBooking(ctx, req.FirstName, req.LastName, req.PhoneNumber,
		customer.VehicleInput{Plate: plate, Class: req.VehicleType}, actor)
	if err != nil {
		return CreateResult{}, err
	}

	vehicleType := idgen.VehicleTwoWheeler
	if req.VehicleType == machine.VehicleFourWheeler {
		vehicleType = idgen.VehicleFourWheeler
	}
	bookingNumber := idgen.BookingNumber(vehicleType, s.now())

	code, expiresAt, err := idgen.OTP(s.now())
	if err != nil {
		return CreateResult{}, apierr.Wrap(apierr.KindInternal, "generating otp", err)
	}

	booking, err := s.store.Create(ctx, CreateParams{
		BookingNumber:       bookingNumber,
		SiteID:              req.SiteID,
		CustomerID:          cust.ID,
		CustomerName:        cust.FirstName + " " + cust.LastName,
		PhoneNumber:         cust.Phone,
		VehicleNumber:       plate,
		VehicleType:         req.VehicleType,
		MachineNumber:       req.MachineNumber,
		PalletNumber:        req.PalletNumber,
		OTP:                 OTP{Code: code, ExpiresAt: expiresAt},
		SpecialInstructions: req.SpecialInstructions,
		CreatedBy:           &actor,
	})
	if err != nil {
		return CreateResult{}, apierr.Wrap(apierr.KindInternal, "creating booking", err)
	}

	s.tryOccupyPallet(ctx, req.SiteID, req.MachineNumber, req.PalletNumber, booking.ID, plate)

	if err := s.customers.RecordBookingStats(ctx, cust.ID); err != nil {
		s.logger.Warn("recording customer booking stats failed", "customerId", cust.ID, "error", err)
	}

	return CreateResult{Booking: booking, IsNewCustomer: isNew, CustomerNameUpdated: nameUpdated}, nil
}

// tryOccupyPallet resolves the machine by code and attempts to occupy the
// requested pallet, swallowing any failure after logging it. Booking
// creation never blocks or rolls back on pallet allocation outcomes
// (spec.md §4.E.1 step 7, §9 scenario #3).
func (s *Service) tryOccupyPallet(ctx context.Context, siteID uuid.UUID, machineNumber string, palletNumber int, bookingID uuid.UUID, plate string) {
	m, err := s.machineSt.GetByMachineCode(ctx, siteID, machineNumber)
	if err != nil {
		s.logger.Warn("booking: pallet occupy skipped, machine not found", "machineNumber", machineNumber, "bookingId", bookingID, "error", err)
		return
	}
	palletKey := strconv.Itoa(palletNumber)
	if _, _, err := s.machines.OccupyPallet(ctx, m.ID, palletKey, bookingID, plate, 0); err != nil {
		s.logger.Warn("booking: best-effort pallet occupy failed", "machineNumber", machineNumber, "palletNumber", palletNumber, "bookingId", bookingID, "error", err)
	}
}

// VerifyOTP implements spec.md §4.E.2: locate the unique active booking
// whose OTP matches code and mark it redeemed.
func (s *Service) VerifyOTP(ctx context.Context, code string) (Booking, error) {
	b, err := s.store.GetActiveByOTPCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apierr.New(apierr.KindInvalidOTP, "invalid or expired otp")
	}
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "looking up otp", err)
	}
	if !b.OTP.IsRedeemable(s.now()) {
		return Booking{}, apierr.New(apierr.KindInvalidOTP, "invalid or expired otp")
	}

	usedAt := s.now()
	b.OTP.IsUsed = true
	b.OTP.UsedAt = &usedAt
	return s.store.UpdateOTP(ctx, b.ID, b.OTP)
}

// CompleteRequest holds the optional payment capture at completion.
type CompleteRequest struct {
	Amount            float64
	Method            string
	TransactionRef    string
	MembershipNumber  string
	BaseRate          float64
	AdditionalCharges float64
	Discount          float64
	Tax               float64
}

// CompleteBooking implements spec.md §4.E.3.
func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID, req CompleteRequest, actor uuid.UUID) (Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apierr.NotFound("booking")
	}
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "loading booking", err)
	}
	if b.Status != StatusActive {
		return Booking{}, apierr.New(apierr.KindIllegalTransition, "booking is not active")
	}

	end := s.now()
	hours, minutes := Duration(b.StartTime, end)

	payment := Payment{}
	if req.Amount > 0 {
		paidAt := end
		payment = Payment{
			Amount:            req.Amount,
			Method:            req.Method,
			Status:            PaymentCompleted,
			TransactionRef:    req.TransactionRef,
			PaidAt:            &paidAt,
			MembershipNumber:  req.MembershipNumber,
			BaseRate:          req.BaseRate,
			AdditionalCharges: req.AdditionalCharges,
			Discount:          req.Discount,
			Tax:               req.Tax,
		}
	}

	updated, err := s.store.Complete(ctx, id, end, hours, minutes, payment, &actor)
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "completing booking", err)
	}

	s.tryReleaseVehicle(ctx, b.SiteID, b.MachineNumber, b.VehicleNumber)

	if payment.Amount > 0 {
		if err := s.customers.RecordPaymentAmount(ctx, b.CustomerID, payment.Amount); err != nil {
			s.logger.Warn("recording customer payment amount failed", "customerId", b.CustomerID, "error", err)
		}
	}

	return updated, nil
}

// CancelBooking implements spec.md §4.E.4.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apierr.NotFound("booking")
	}
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "loading booking", err)
	}
	if b.Status == StatusCompleted || b.Status == StatusCancelled {
		return Booking{}, apierr.New(apierr.KindIllegalTransition, "booking is already closed")
	}

	notes := b.Notes
	if reason != "" {
		if notes != "" {
			notes += "; "
		}
		notes += "cancelled: " + reason
	}

	updated, err := s.store.Cancel(ctx, id, notes, &actor)
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "cancelling booking", err)
	}

	s.tryReleaseVehicle(ctx, b.SiteID, b.MachineNumber, b.VehicleNumber)

	return updated, nil
}

func (s *Service) tryReleaseVehicle(ctx context.Context, siteID uuid.UUID, machineNumber, plate string) {
	m, err := s.machineSt.GetByMachineCode(ctx, siteID, machineNumber)
	if err != nil {
		s.logger.Warn("booking: pallet release skipped, machine not found", "machineNumber", machineNumber, "error", err)
		return
	}
	if _, err := s.machines.ReleaseVehicle(ctx, m.ID, plate); err != nil {
		s.logger.Warn("booking: best-effort pallet release failed", "machineNumber", machineNumber, "plate", plate, "error", err)
	}
}

// ExtendBooking implements spec.md §4.E.5. OTP expiry is untouched.
func (s *Service) ExtendBooking(ctx context.Context, id uuid.UUID, hours, minutes int, actor uuid.UUID) (Booking, error) {
	if hours <= 0 && minutes <= 0 {
		return Booking{}, apierr.New(apierr.KindValidation, "extension must add positive time")
	}

	b, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apierr.NotFound("booking")
	}
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "loading booking", err)
	}
	if b.Status != StatusActive {
		return Booking{}, apierr.New(apierr.KindIllegalTransition, "booking is not active")
	}

	note := "extended by"
	if hours > 0 {
		note += " " + strconv.Itoa(hours) + "h"
	}
	if minutes > 0 {
		note += " " + strconv.Itoa(minutes) + "m"
	}
	notes := b.Notes
	if notes != "" {
		notes += "; "
	}
	notes += note

	return s.store.AppendNotes(ctx, id, notes, &actor)
}

// RegenerateOTP implements spec.md §4.E.5's OTP reissuance variant.
func (s *Service) RegenerateOTP(ctx context.Context, id uuid.UUID) (Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apierr.NotFound("booking")
	}
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "loading booking", err)
	}
	if b.Status != StatusActive {
		return Booking{}, apierr.New(apierr.KindIllegalTransition, "booking is not active")
	}

	code, expiresAt, err := idgen.OTP(s.now())
	if err != nil {
		return Booking{}, apierr.Wrap(apierr.KindInternal, "generating otp", err)
	}
	return s.store.UpdateOTP(ctx, id, OTP{Code: code, ExpiresAt: expiresAt})
}

// ListBookings implements spec.md §4.E.6's paginated list query.
func (s *Service) ListBookings(ctx context.Context, f ListFilters, limit, offset int) ([]Booking, int, error) {
	bookings, err := s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "listing bookings", err)
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindInternal, "counting bookings", err)
	}
	return bookings, total, nil
}

// SearchBookings implements spec.md §4.E.6's substring search, capped at 50.
func (s *Service) SearchBookings(ctx context.Context, field, query string) ([]Booking, error) {
	const maxResults = 50
	results, err := s.store.Search(ctx, field, query, maxResults)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "searching bookings", err)
	}
	return results, nil
}

// GetBookingsByMachine returns bookings for a machine.
func (s *Service) GetBookingsByMachine(ctx context.Context, machineNumber, status string) ([]Booking, error) {
	bookings, err := s.store.ByMachine(ctx, machineNumber, status)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "listing bookings by machine", err)
	}
	return bookings, nil
}

// GetBookingsByVehicle returns bookings for a vehicle plate.
func (s *Service) GetBookingsByVehicle(ctx context.Context, plate string) ([]Booking, error) {
	bookings, err := s.store.ByVehicle(ctx, plate)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "listing bookings by vehicle", err)
	}
	return bookings, nil
}

// GetActiveBookings returns all active bookings.
func (s *Service) GetActiveBookings(ctx context.Context) ([]Booking, error) {
	bookings, err := s.store.Active(ctx)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "listing active bookings", err)
	}
	return bookings, nil
}

// GetBookingStats returns aggregate booking stats over a date range.
func (s *Service) GetBookingStats(ctx context.Context, from, to time.Time) (Stats, error) {
	stats, err := s.store.Stats(ctx, from, to)
	if err != nil {
		return Stats{}, apierr.Wrap(apierr.KindInternal, "computing booking stats", err)
	}
	return stats, nil
}
