// Package customer implements the customer registry and membership
// entitlement engine described in spec.md §4.C: customer records with an
// embedded vehicle list and at most one membership block, a phone-number
// identity unique among active customers, and an append-only membership
// payment ledger.
package customer

import (
	"time"

	"github.com/google/uuid"
)

// Status values for a Customer, per spec.md §3.1.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
)

// Vehicle classes, shared with the machine and booking engines.
const (
	VehicleTwoWheeler  = "two-wheeler"
	VehicleFourWheeler = "four-wheeler"
)

// Membership plan types.
const (
	PlanMonthly   = "monthly"
	PlanQuarterly = "quarterly"
	PlanYearly    = "yearly"
	PlanPremium   = "premium"
)

// DefaultPlanAmount returns the default payment amount for a membership
// plan, per spec.md §4.C.6. Callers may override it explicitly.
func DefaultPlanAmount(plan string) float64 {
	switch plan {
	case PlanMonthly:
		return 500
	case PlanQuarterly:
		return 1200
	case PlanYearly:
		return 4000
	case PlanPremium:
		return 6000
	default:
		return 0
	}
}

// Vehicle is one entry in a customer's embedded vehicle list.
type Vehicle struct {
	ID        uuid.UUID  `json:"id"`
	Plate     string     `json:"plate"`
	Class     string     `json:"class"`
	Make      string     `json:"make,omitempty"`
	Model     string     `json:"model,omitempty"`
	Color     string     `json:"color,omitempty"`
	IsActive  bool       `json:"isActive"`
	CreatedBy *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Membership is the customer's at-most-one embedded entitlement block.
type Membership struct {
	MembershipNumber     string    `json:"membershipNumber"`
	PIN                  string    `json:"pin"`
	Type                 string    `json:"type"`
	CoveredVehicleTypes  []string  `json:"coveredVehicleTypes"`
	IssuedAt             time.Time `json:"issuedAt"`
	ExpiresAt            time.Time `json:"expiresAt"`
	ValidityTermMonths   int       `json:"validityTermMonths"`
	IsActive             bool      `json:"isActive"`
}

// Covers reports whether the membership covers vehicleType right now
// (invariant M2 of spec.md §3.1): active, unexpired, and the class listed.
func (m *Membership) Covers(vehicleType string, now time.Time) bool {
	if m == nil || !m.IsActive || !m.ExpiresAt.After(now) {
		return false
	}
	for _, c := range m.CoveredVehicleTypes {
		if c == vehicleType {
			return true
		}
	}
	return false
}

// coverageSet builds a fresh set from CoveredVehicleTypes for subset/superset
// comparisons. Built on demand per spec.md §4 — no stored derived field, so
// no staleness is possible.
func (m *Membership) coverageSet() map[string]struct{} {
	set := make(map[string]struct{}, len(m.CoveredVehicleTypes))
	for _, c := range m.CoveredVehicleTypes {
		set[c] = struct{}{}
	}
	return set
}

// isSubsetOf reports whether every class in other is already covered by m.
func (m *Membership) isSubsetOf(other []string) bool {
	set := m.coverageSet()
	for _, c := range other {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

// Customer is a person with a phone-number identity.
type Customer struct {
	ID             uuid.UUID   `json:"id"`
	CustomerCode   string      `json:"customerCode"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Phone          string      `json:"phone"`
	Email          string      `json:"email,omitempty"`
	Vehicles       []Vehicle   `json:"vehicles"`
	Membership     *Membership `json:"membership,omitempty"`
	TotalBookings  int         `json:"totalBookings"`
	TotalAmount    float64     `json:"totalAmount"`
	LastBookingAt  *time.Time  `json:"lastBookingAt,omitempty"`
	Status         string      `json:"status"`
	DeactivationReason string  `json:"deactivationReason,omitempty"`
	CreatedBy      *uuid.UUID  `json:"createdBy,omitempty"`
	UpdatedBy      *uuid.UUID  `json:"updatedBy,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
}

// FullName returns the customer's display name.
func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ActiveVehicle returns the active vehicle entry with the given plate, if any.
func (c *Customer) ActiveVehicle(plate string) (Vehicle, bool) {
	for _, v := range c.Vehicles {
		if v.IsActive && v.Plate == plate {
			return v, true
		}
	}
	return Vehicle{}, false
}

// MembershipPayment is an append-only ledger row recording a membership
// issuance or renewal charge.
type MembershipPayment struct {
	ID                   uuid.UUID  `json:"id"`
	CustomerID           uuid.UUID  `json:"customerId"`
	CustomerName         string     `json:"customerName"`
	CustomerPhone        string     `json:"customerPhone"`
	MembershipNumber     string     `json:"membershipNumber"`
	Type                 string     `json:"type"`
	Amount               float64    `json:"amount"`
	Method               string     `json:"method"`
	TransactionRef       string     `json:"transactionRef,omitempty"`
	StartDate            time.Time  `json:"startDate"`
	ExpiryDate           time.Time  `json:"expiryDate"`
	ValidityTermMonths   int        `json:"validityTermMonths"`
	CoveredVehicleTypes  []string   `json:"coveredVehicleTypes"`
	Status               string     `json:"status"`
	CreatedBy            *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}
