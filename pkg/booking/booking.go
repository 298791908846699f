// Package booking implements the booking lifecycle and OTP flow: creation
// against best-effort pallet occupancy, OTP issuance and redemption,
// completion, cancellation, extension, and the read-query surface.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// Booking lifecycle states (spec.md §4.E.7). Expired is reserved but never
// driven by any operation in this service; see DESIGN.md.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Vehicle classes, mirrored from pkg/machine/pkg/customer to keep this
// package free of a dependency on either for a pair of string constants.
const (
	VehicleTwoWheeler  = "two-wheeler"
	VehicleFourWheeler = "four-wheeler"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// OTP is the one-time password issued at booking creation and redeemed at
// vehicle retrieval.
type OTP struct {
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expiresAt"`
	IsUsed    bool       `json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

// IsRedeemable reports whether this OTP can still be verified against now.
func (o OTP) IsRedeemable(now time.Time) bool {
	return !o.IsUsed && now.Before(o.ExpiresAt)
}

// Payment is the booking's embedded payment record (spec.md §4.D.1's
// attribute list).
type Payment struct {
	Amount            float64    `json:"amount,omitempty"`
	Method            string     `json:"method,omitempty"`
	Status            string     `json:"status,omitempty"`
	TransactionRef    string     `json:"transactionRef,omitempty"`
	PaidAt            *time.Time `json:"paidAt,omitempty"`
	MembershipNumber  string     `json:"membershipNumber,omitempty"`
	BaseRate          float64    `json:"baseRate,omitempty"`
	AdditionalCharges float64    `json:"additionalCharges,omitempty"`
	Discount          float64    `json:"discount,omitempty"`
	Tax               float64    `json:"tax,omitempty"`
}

// Booking is one parking session: a denormalized copy of customer/vehicle
// identity at creation time (spec.md §9 "denormalized booking copies") plus
// the machine/pallet it was assigned to and its lifecycle state.
type Booking struct {
	ID                  uuid.UUID  `json:"id"`
	BookingNumber       string     `json:"bookingNumber"`
	SiteID              uuid.UUID  `json:"siteId"`
	CustomerID          uuid.UUID  `json:"customerId"`
	CustomerName        string     `json:"customerName"`
	PhoneNumber         string     `json:"phoneNumber"`
	VehicleNumber       string     `json:"vehicleNumber"`
	VehicleType         string     `json:"vehicleType"`
	MachineNumber       string     `json:"machineNumber"`
	PalletNumber        int        `json:"palletNumber"`
	Status              string     `json:"status"`
	StartTime           time.Time  `json:"startTime"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	DurationHours       *int       `json:"durationHours,omitempty"`
	DurationMinutes     *int       `json:"durationMinutes,omitempty"`
	OTP                 OTP        `json:"otp"`
	Payment             Payment    `json:"payment"`
	Notes               string     `json:"notes,omitempty"`
	SpecialInstructions string     `json:"specialInstructions,omitempty"`
	CreatedBy           *uuid.UUID `json:"createdBy,omitempty"`
	UpdatedBy           *uuid.UUID `json:"updatedBy,omitempty"`
	CompletedBy         *uuid.UUID `json:"completedBy,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Duration computes the hours/minutes split between start and end.
func Duration(start, end time.Time) (hours, minutes int) {
	d := end.Sub(start)
	hours = int(d.Hours())
	minutes = int(d.Minutes()) - hours*60
	return hours, minutes
}

// Stats summarizes bookings over a date range (spec.md §4.E.6).
type Stats struct {
	TotalBookings     int     `json:"totalBookings"`
	ActiveBookings    int     `json:"activeBookings"`
	CompletedBookings int     `json:"completedBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	TotalRevenue      float64 `json:"totalRevenue"`
}
