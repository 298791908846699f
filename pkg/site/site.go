// Package site implements the site registry and per-site user assignment
// described in spec.md §4.F: operating hours and pricing overrides, the
// lifecycle from active through deactivation to permanent deletion, and
// site-scoped statistics.
package site

import (
	"time"

	"github.com/google/uuid"
)

// DailyHours is one weekday's operating window.
type DailyHours struct {
	Open  bool   `json:"open"`
	From  string `json:"from,omitempty"` // local wall-clock, e.g. "09:00"
	To    string `json:"to,omitempty"`
}

// OperatingHours maps weekday name to its hours, e.g. "monday".
type OperatingHours map[string]DailyHours

// Pricing holds the per-vehicle-class rate block.
type Pricing struct {
	BaseRateTwoWheeler    float64 `json:"baseRateTwoWheeler"`
	BaseRateFourWheeler   float64 `json:"baseRateFourWheeler"`
	MinChargeTwoWheeler   float64 `json:"minChargeTwoWheeler"`
	MinChargeFourWheeler  float64 `json:"minChargeFourWheeler"`
	PeakMultiplier        float64 `json:"peakMultiplier"`
	PeakWindowFrom        string  `json:"peakWindowFrom,omitempty"`
	PeakWindowTo          string  `json:"peakWindowTo,omitempty"`
}

// Status values for a Site, per spec.md §3.1.
const (
	StatusActive            = "active"
	StatusInactive          = "inactive"
	StatusMaintenance       = "maintenance"
	StatusUnderConstruction = "under-construction"
)

// Site is a physical parking location.
type Site struct {
	ID                    uuid.UUID      `json:"id"`
	SiteCode              string         `json:"siteCode"`
	Name                  string         `json:"name"`
	Address               string         `json:"address,omitempty"`
	Latitude              *float64       `json:"latitude,omitempty"`
	Longitude             *float64       `json:"longitude,omitempty"`
	OperatingHours        OperatingHours `json:"operatingHours"`
	Pricing               Pricing        `json:"pricing"`
	DeclaredMachineCount  int            `json:"declaredMachineCount"`
	DeclaredCapacity      int            `json:"declaredCapacity"`
	Status                string         `json:"status"`
	CreatedBy             *uuid.UUID     `json:"createdBy,omitempty"`
	UpdatedBy             *uuid.UUID     `json:"updatedBy,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// UserAssignment is one row of a site's assigned users.
type UserAssignment struct {
	SiteID      uuid.UUID `json:"siteId"`
	UserID      uuid.UUID `json:"userId"`
	SiteRole    string    `json:"siteRole"`
	Permissions []string  `json:"permissions"`
	IsPrimary   bool      `json:"isPrimary"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// Statistics is the on-demand summary returned by Service.Statistics.
type Statistics struct {
	SiteID             uuid.UUID `json:"siteId"`
	MachinesTotal      int       `json:"machinesTotal"`
	MachinesOnline     int       `json:"machinesOnline"`
	BookingsTotal      int       `json:"bookingsTotal"`
	BookingsToday      int       `json:"bookingsToday"`
	BookingsActive     int       `json:"bookingsActive"`
	RevenueTotal       float64   `json:"revenueTotal"`
	RevenueToday       float64   `json:"revenueToday"`
	ComputedAt         time.Time `json:"computedAt"`
}
