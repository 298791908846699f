package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parklane/parkcore/internal/apierr"
	"github.com/parklane/parkcore/internal/idgen"
	"github.com/parklane/parkcore/internal/validation"
)

const (
	minSearchQueryLen = 2
	maxSearchResults  = 50
)

// Service encapsulates customer and membership business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a customer Service backed by the given global pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{
		store:  NewStore(pool),
		logger: logger,
		now:    time.Now,
	}
}

// CreateRequest is the payload for creating a customer.
type CreateRequest struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Vehicle   *VehicleInput
}

// VehicleInput is the payload shape for adding a vehicle.
type VehicleInput struct {
	Plate string
	Class string
	Make  string
	Model string
	Color string
}

// Create registers a new customer. Phone must not match any active customer.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor uuid.UUID) (Customer, error) {
	_, err := s.store.GetByActivePhone(ctx, req.Phone)
	if err == nil {
		return Customer{}, apierr.Conflict("a customer with this phone number already exists")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "checking existing customer", err)
	}

	var vehicles []Vehicle
	if req.Vehicle != nil {
		vehicles = append(vehicles, Vehicle{
			ID:        uuid.New(),
			Plate:     validation.NormalizePlate(req.Vehicle.Plate),
			Class:     req.Vehicle.Class,
			Make:      req.Vehicle.Make,
			Model:     req.Vehicle.Model,
			Color:     req.Vehicle.Color,
			IsActive:  true,
			CreatedBy: &actor,
			CreatedAt: s.now(),
		})
	}

	row, err := s.store.Create(ctx, CreateParams{
		CustomerCode: idgen.CustomerCode(s.now()),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Email:        req.Email,
		Vehicles:     vehicles,
		CreatedBy:    &actor,
	})
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "creating customer", err)
	}
	return row, nil
}

// ResolveForBooking implements the customer-resolution half of
// CreateBooking (spec.md §4.E.1 step 3): find the active customer by
// phone, creating one with the given vehicle attached if none exists, or
// updating the stored name and attaching the vehicle if it's missing.
// isNewCustomer and nameUpdated are response-layer flags, not persisted.
func (s *Service) ResolveForBooking(ctx context.Context, firstName, lastName, phone string, vehicle VehicleInput, actor uuid.UUID) (cust Customer, isNewCustomer, nameUpdated bool, err error) {
	cust, err = s.store.GetByActivePhone(ctx, phone)
	if errors.Is(err, pgx.ErrNoRows) {
		created, createErr := s.Create(ctx, CreateRequest{
			FirstName: firstName,
			LastName:  lastName,
			Phone:     phone,
			Vehicle:   &vehicle,
		}, actor)
		if createErr != nil {
			return Customer{}, false, false, createErr
		}
		return created, true, false, nil
	}
	if err != nil {
		return Customer{}, false, false, apierr.Wrap(apierr.KindInternal, "resolving customer by phone", err)
	}

	if cust.FirstName != firstName || cust.LastName != lastName {
		updated, updateErr := s.store.UpdateName(ctx, cust.ID, firstName, lastName, &actor)
		if updateErr != nil {
			return Customer{}, false, false, apierr.Wrap(apierr.KindInternal, "updating customer name", updateErr)
		}
		cust = updated
		nameUpdated = true
	}

	plate := validation.NormalizePlate(vehicle.Plate)
	if _, active := cust.ActiveVehicle(plate); !active {
		added, addErr := s.AddVehicle(ctx, cust.ID, VehicleInput{
			Plate: plate, Class: vehicle.Class, Make: vehicle.Make, Model: vehicle.Model, Color: vehicle.Color,
		}, actor)
		if addErr != nil {
			return Customer{}, false, false, addErr
		}
		cust = added
	}

	return cust, false, nameUpdated, nil
}

// RecordBookingStats increments a customer's booking count and last-booking
// timestamp (spec.md §4.E.1 step 8 / §4.E.3's aggregate update).
func (s *Service) RecordBookingStats(ctx context.Context, customerID uuid.UUID) error {
	if err := s.store.RecordBooking(ctx, customerID); err != nil {
		return apierr.Wrap(apierr.KindInternal, "recording booking stats", err)
	}
	return nil
}

// RecordPaymentAmount adds a completed booking's payment amount to a
// customer's running total (spec.md §4.E.3).
func (s *Service) RecordPaymentAmount(ctx context.Context, customerID uuid.UUID, amount float64) error {
	if err := s.store.RecordPaymentAmount(ctx, customerID, amount); err != nil {
		return apierr.Wrap(apierr.KindInternal, "recording payment amount", err)
	}
	return nil
}

// Get fetches a customer by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	row, err := s.store.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, apierr.NotFound("customer")
	}
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "fetching customer", err)
	}
	return row, nil
}

// Search performs a case-insensitive substring search, per spec.md §4.C.2.
func (s *Service) Search(ctx context.Context, query, field string) ([]Customer, error) {
	if len(query) < minSearchQueryLen {
		return nil, apierr.New(apierr.KindValidation, fmt.Sprintf("search query must be at least %d characters", minSearchQueryLen))
	}
	items, err := s.store.Search(ctx, field, query, maxSearchResults)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "searching customers", err)
	}
	return items, nil
}

// AddVehicle appends a vehicle to a customer, rejecting an already-active
// duplicate plate.
func (s *Service) AddVehicle(ctx context.Context, customerID uuid.UUID, in VehicleInput, actor uuid.UUID) (Customer, error) {
	cust, err := s.Get(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}

	plate := validation.NormalizePlate(in.Plate)
	if _, active := cust.ActiveVehicle(plate); active {
		return Customer{}, apierr.Conflict("this vehicle is already registered to the customer")
	}

	cust.Vehicles = append(cust.Vehicles, Vehicle{
		ID:        uuid.New(),
		Plate:     plate,
		Class:     in.Class,
		Make:      in.Make,
		Model:     in.Model,
		Color:     in.Color,
		IsActive:  true,
		CreatedBy: &actor,
		CreatedAt: s.now(),
	})

	row, err := s.store.ReplaceVehicles(ctx, customerID, cust.Vehicles, &actor)
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "adding vehicle", err)
	}
	return row, nil
}

// RemoveVehicle soft-deletes a vehicle, rejecting the operation if that
// plate has an active booking.
func (s *Service) RemoveVehicle(ctx context.Context, customerID, vehicleID uuid.UUID, actor uuid.UUID) (Customer, error) {
	cust, err := s.Get(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}

	idx := -1
	for i, v := range cust.Vehicles {
		if v.ID == vehicleID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Customer{}, apierr.NotFound("vehicle")
	}

	activeBookings, err := s.store.CountActiveBookingsForVehicle(ctx, cust.Vehicles[idx].Plate)
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "checking vehicle bookings", err)
	}
	if activeBookings > 0 {
		return Customer{}, apierr.New(apierr.KindConflict, "vehicle has an active booking and cannot be removed")
	}

	now := s.now()
	cust.Vehicles[idx].IsActive = false
	cust.Vehicles[idx].DeletedAt = &now

	row, err := s.store.ReplaceVehicles(ctx, customerID, cust.Vehicles, &actor)
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "removing vehicle", err)
	}
	return row, nil
}

// SoftDelete deactivates a customer, rejecting the operation if any booking
// is still active.
func (s *Service) SoftDelete(ctx context.Context, customerID uuid.UUID, reason string, actor uuid.UUID) error {
	activeBookings, err := s.store.CountActiveBookingsForCustomer(ctx, customerID)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "checking customer bookings", err)
	}
	if activeBookings > 0 {
		return apierr.New(apierr.KindConflict, "customer has an active booking and cannot be deleted")
	}

	if err := s.store.SoftDelete(ctx, customerID, reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierr.NotFound("customer")
		}
		return apierr.Wrap(apierr.KindInternal, "deleting customer", err)
	}
	return nil
}

// CreateMembershipRequest is the payload for CreateMembership.
type CreateMembershipRequest struct {
	Type                string
	TermMonths          int
	CoveredVehicleTypes []string
	PaymentAmount       *float64
	PaymentMethod       string
	TransactionRef      string
}

// CreateMembership issues, extends, or rejects a membership per the
// subset/superset coverage rule in spec.md §4.C.6.
func (s *Service) CreateMembership(ctx context.Context, customerID uuid.UUID, req CreateMembershipRequest, actor uuid.UUID) (Customer, error) {
	cust, err := s.Get(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}

	now := s.now()
	amount := DefaultPlanAmount(req.Type)
	if req.PaymentAmount != nil {
		amount = *req.PaymentAmount
	}

	existing := cust.Membership
	if existing != nil && existing.IsActive && existing.ExpiresAt.After(now) {
		if existing.isSubsetOf(req.CoveredVehicleTypes) {
			return Customer{}, apierr.New(apierr.KindConflict, "requested coverage is already fully covered by the active membership")
		}

		merged := mergeCoverage(existing.CoveredVehicleTypes, req.CoveredVehicleTypes)
		existing.CoveredVehicleTypes = merged

		row, err := s.store.ReplaceMembership(ctx, customerID, existing, &actor)
		if err != nil {
			return Customer{}, apierr.Wrap(apierr.KindInternal, "extending membership", err)
		}

		if err := s.recordMembershipPayment(ctx, row, existing, req, amount, actor); err != nil {
			return Customer{}, err
		}
		return row, nil
	}

	membershipNumber, err := idgen.MembershipNumber(func(candidate string) (bool, error) {
		return s.store.MembershipNumberInUse(ctx, candidate)
	})
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "generating membership number", err)
	}
	pin, err := idgen.MembershipPIN(func(candidate string) (bool, error) {
		return false, nil // PIN uniqueness is scoped to (number, pin), not PIN alone
	})
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "generating membership pin", err)
	}

	fresh := &Membership{
		MembershipNumber:    membershipNumber,
		PIN:                 pin,
		Type:                req.Type,
		CoveredVehicleTypes: req.CoveredVehicleTypes,
		IssuedAt:            now,
		ExpiresAt:           now.AddDate(0, req.TermMonths, 0),
		ValidityTermMonths:  req.TermMonths,
		IsActive:            true,
	}

	row, err := s.store.ReplaceMembership(ctx, customerID, fresh, &actor)
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "issuing membership", err)
	}

	if err := s.recordMembershipPayment(ctx, row, fresh, req, amount, actor); err != nil {
		return Customer{}, err
	}
	return row, nil
}

func (s *Service) recordMembershipPayment(ctx context.Context, cust Customer, m *Membership, req CreateMembershipRequest, amount float64, actor uuid.UUID) error {
	_, err := s.store.InsertMembershipPayment(ctx, MembershipPayment{
		CustomerID:          cust.ID,
		CustomerName:        cust.FullName(),
		CustomerPhone:       cust.Phone,
		MembershipNumber:    m.MembershipNumber,
		Type:                req.Type,
		Amount:              amount,
		Method:              req.PaymentMethod,
		TransactionRef:      req.TransactionRef,
		StartDate:           m.IssuedAt,
		ExpiryDate:          m.ExpiresAt,
		ValidityTermMonths:  req.TermMonths,
		CoveredVehicleTypes: req.CoveredVehicleTypes,
		Status:              "completed",
		CreatedBy:           &actor,
	})
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, "recording membership payment", err)
	}
	return nil
}

// mergeCoverage returns the union of base and additional, preserving base's
// order and appending any new classes from additional.
func mergeCoverage(base, additional []string) []string {
	set := make(map[string]struct{}, len(base))
	merged := make([]string, 0, len(base)+len(additional))
	for _, c := range base {
		if _, ok := set[c]; !ok {
			set[c] = struct{}{}
			merged = append(merged, c)
		}
	}
	for _, c := range additional {
		if _, ok := set[c]; !ok {
			set[c] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged
}

// ValidateMembership checks a (membershipNumber, pin) credential tuple,
// optionally scoped to a vehicle class, per spec.md §4.C.7.
func (s *Service) ValidateMembership(ctx context.Context, membershipNumber, pin string, forVehicleType string) (Customer, error) {
	cust, err := s.store.GetByMembershipNumber(ctx, membershipNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, apierr.New(apierr.KindNotFound, "no active membership matches this credential")
	}
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "validating membership", err)
	}

	m := cust.Membership
	if m == nil || m.PIN != pin || !m.IsActive || !m.ExpiresAt.After(s.now()) {
		return Customer{}, apierr.New(apierr.KindNotFound, "no active membership matches this credential")
	}
	if forVehicleType != "" && !m.Covers(forVehicleType, s.now()) {
		return Customer{}, apierr.New(apierr.KindForbidden, "membership does not cover this vehicle class")
	}
	return cust, nil
}

// DeactivateMembership flips isActive to false; ledger rows are untouched.
func (s *Service) DeactivateMembership(ctx context.Context, customerID uuid.UUID, actor uuid.UUID) (Customer, error) {
	cust, err := s.Get(ctx, customerID)
	if err != nil {
		return Customer{}, err
	}
	if cust.Membership == nil {
		return Customer{}, apierr.New(apierr.KindNotFound, "customer has no membership")
	}

	cust.Membership.IsActive = false
	row, err := s.store.ReplaceMembership(ctx, customerID, cust.Membership, &actor)
	if err != nil {
		return Customer{}, apierr.Wrap(apierr.KindInternal, "deactivating membership", err)
	}
	return row, nil
}
