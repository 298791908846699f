// Package machine manages parking machines and their pallets: capacity
// derivation, pallet numbering, occupancy transitions and maintenance
// state for the mechanical parking fleet at a site.
package machine

import (
	"time"

	"github.com/google/uuid"

	"github.com/parklane/parkcore/pkg/site"
)

// Kinematic types a machine can be built on.
const (
	KinematicRotary = "rotary"
	KinematicPuzzle = "puzzle"
)

// Vehicle classes a machine is built to target.
const (
	VehicleTwoWheeler  = "two-wheeler"
	VehicleFourWheeler = "four-wheeler"
)

// Machine lifecycle states.
const (
	StatusOnline      = "online"
	StatusOffline     = "offline"
	StatusMaintenance = "maintenance"
	StatusError       = "error"
)

// Pallet states.
const (
	PalletAvailable   = "available"
	PalletOccupied    = "occupied"
	PalletMaintenance = "maintenance"
	PalletBlocked     = "blocked"
)

// onlineThreshold is how stale a heartbeat may be before a machine is
// considered offline for availability purposes.
const onlineThreshold = 5 * time.Minute

// Specifications describes the physical envelope a machine accepts.
type Specifications struct {
	MaxLengthCM           float64  `json:"maxLengthCm"`
	MaxWidthCM            float64  `json:"maxWidthCm"`
	MaxHeightCM           float64  `json:"maxHeightCm"`
	MaxWeightKG           float64  `json:"maxWeightKg"`
	SupportedVehicleTypes []string `json:"supportedVehicleTypes"`
}

// Capacity is the machine-level aggregate occupancy summary. It is
// recomputed from Pallets on every mutation rather than trusted as an
// independent source of truth.
type Capacity struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Occupied    int `json:"occupied"`
	Maintenance int `json:"maintenance"`
}

// Occupant is one vehicle currently parked on a pallet.
type Occupant struct {
	BookingID     uuid.UUID `json:"bookingId"`
	VehicleNumber string    `json:"vehicleNumber"`
	Position      int       `json:"position"`
	OccupiedSince time.Time `json:"occupiedSince"`
}

// Pallet is one mechanical slot within a machine. VehicleCapacity is the
// maximum number of simultaneous occupants the slot supports (V in the
// capacity model); CurrentBookings holds between 0 and VehicleCapacity
// occupants.
type Pallet struct {
	Number           int        `json:"number"`
	CustomName       string     `json:"customName,omitempty"`
	Status           string     `json:"status"`
	VehicleCapacity  int        `json:"vehicleCapacity"`
	CurrentOccupancy int        `json:"currentOccupancy"`
	CurrentBookings  []Occupant `json:"currentBookings"`
	OccupiedSince    *time.Time `json:"occupiedSince,omitempty"`
	LastMaintenance  *time.Time `json:"lastMaintenance,omitempty"`
	MaintenanceNotes string     `json:"maintenanceNotes,omitempty"`
}

// ServiceRecord is one entry in a machine's maintenance history.
type ServiceRecord struct {
	Date        time.Time  `json:"date"`
	Type        string     `json:"type"`
	Notes       string     `json:"notes,omitempty"`
	PerformedBy *uuid.UUID `json:"performedBy,omitempty"`
}

// Machine is a single mechanical parking unit at a site.
type Machine struct {
	ID                uuid.UUID       `json:"id"`
	SiteID            uuid.UUID       `json:"siteId"`
	MachineCode       string          `json:"machineCode"`
	KinematicType     string          `json:"kinematicType"`
	TargetVehicleType string          `json:"targetVehicleType"`
	Status            string          `json:"status"`
	Specifications    Specifications  `json:"specifications"`
	Capacity          Capacity        `json:"capacity"`
	Pallets           []Pallet        `json:"pallets"`
	OperatingHours    site.OperatingHours `json:"operatingHours"`
	PricingOverride   *site.Pricing   `json:"pricingOverride,omitempty"`
	LastHeartbeat     *time.Time      `json:"lastHeartbeat,omitempty"`
	FirmwareVersion   string          `json:"firmwareVersion,omitempty"`
	ConnectionStatus  string          `json:"connectionStatus"`
	ServiceHistory    []ServiceRecord `json:"serviceHistory"`
	CreatedBy         *uuid.UUID      `json:"createdBy,omitempty"`
	UpdatedBy         *uuid.UUID      `json:"updatedBy,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// IsOnline reports whether the machine has heartbeat within onlineThreshold
// of now. A machine with status "online" but a stale heartbeat is treated
// as offline for availability purposes.
func (m *Machine) IsOnline(now time.Time) bool {
	if m.Status != StatusOnline {
		return false
	}
	if m.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*m.LastHeartbeat) <= onlineThreshold
}

// VehicleCapacity returns V, the maximum simultaneous occupants per
// pallet, for a given kinematic/target combination:
//
//	rotary + four-wheeler -> 1
//	rotary + two-wheeler  -> 6
//	puzzle + four-wheeler -> 1
//	puzzle + two-wheeler  -> 3 (positions still addressed 1..6)
func VehicleCapacity(kinematicType, targetVehicleType string) int {
	if targetVehicleType == VehicleFourWheeler {
		return 1
	}
	if kinematicType == KinematicRotary {
		return 6
	}
	return 3
}

// GeneratePalletNumbers returns the pallet numbers for a freshly
// initialized machine of the given kinematic type and total pallet count.
//
// Rotary machines number pallets sequentially from 1.
//
// Puzzle machines number pallets per floor, four per floor starting at
// 101 (floor 1), 201 (floor 2), and so on. When total is not a multiple
// of four the last floor is left under-filled rather than padded or
// rolled into a new floor; this mirrors the source behavior and is a
// documented ambiguity the operator should resolve before go-live.
func GeneratePalletNumbers(kinematicType string, total int) []int {
	if total <= 0 {
		return nil
	}
	if kinematicType == KinematicRotary {
		nums := make([]int, total)
		for i := 0; i < total; i++ {
			nums[i] = i + 1
		}
		return nums
	}

	nums := make([]int, 0, total)
	floor := 1
	remaining := total
	for remaining > 0 {
		perFloor := 4
		if remaining < perFloor {
			perFloor = remaining
		}
		for slot := 1; slot <= perFloor; slot++ {
			nums = append(nums, floor*100+slot)
		}
		remaining -= perFloor
		floor++
	}
	return nums
}

// InitPallets builds the initial pallet set for a new machine.
func InitPallets(kinematicType, targetVehicleType string, total int) []Pallet {
	capacity := VehicleCapacity(kinematicType, targetVehicleType)
	numbers := GeneratePalletNumbers(kinematicType, total)
	pallets := make([]Pallet, len(numbers))
	for i, n := range numbers {
		pallets[i] = Pallet{
			Number:          n,
			Status:          PalletAvailable,
			VehicleCapacity: capacity,
			CurrentBookings: []Occupant{},
		}
	}
	return pallets
}

// RecomputeCapacity derives the machine-level Capacity summary from the
// current pallet slice. Called after every pallet mutation so Capacity
// never drifts from the authoritative pallet list.
func RecomputeCapacity(pallets []Pallet) Capacity {
	var c Capacity
	c.Total = len(pallets)
	for _, p := range pallets {
		switch p.Status {
		case PalletMaintenance:
			c.Maintenance++
		case PalletOccupied:
			c.Occupied += p.CurrentOccupancy
		case PalletAvailable:
			c.Available += p.VehicleCapacity - p.CurrentOccupancy
		}
	}
	return c
}

// findPallet returns the index of the pallet with the given number, or -1.
func findPallet(pallets []Pallet, number int) int {
	for i := range pallets {
		if pallets[i].Number == number {
			return i
		}
	}
	return -1
}
