package machine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parklane/parkcore/internal/apierr"
)

// occupyPallet mutates pallets in place, occupying pallet number with the
// given booking/vehicle/position, and returns the position assigned. It
// assumes all five OccupyPallet preconditions have already been checked by
// the caller; it only implements the position-assignment and bookkeeping
// rules (spec.md §4.D.3).
func occupyPallet(pallets []Pallet, palletNumber int, bookingID uuid.UUID, plate string, vehicleType string, requestedPosition int, now time.Time) (int, error) {
	idx := findPallet(pallets, palletNumber)
	if idx < 0 {
		return 0, apierr.NotFound("pallet")
	}
	p := &pallets[idx]

	var position int
	if vehicleType == VehicleFourWheeler {
		position = 1
	} else if requestedPosition > 0 {
		if occupantAtPosition(p.CurrentBookings, requestedPosition) {
			return 0, apierr.New(apierr.KindPositionTaken, "position already occupied")
		}
		position = requestedPosition
	} else {
		pos, ok := lowestFreePosition(p.CurrentBookings)
		if !ok {
			return 0, apierr.New(apierr.KindPalletFull, "pallet has no free position")
		}
		position = pos
	}

	p.CurrentBookings = append(p.CurrentBookings, Occupant{
		BookingID:     bookingID,
		VehicleNumber: strings.ToUpper(plate),
		Position:      position,
		OccupiedSince: now,
	})
	p.CurrentOccupancy = len(p.CurrentBookings)
	if p.CurrentOccupancy == 1 {
		p.OccupiedSince = &now
	}
	if p.CurrentOccupancy == p.VehicleCapacity {
		p.Status = PalletOccupied
	}
	return position, nil
}

// releasePalletByBooking removes the occupant matching bookingID from
// whichever pallet holds it. Returns the pallet number released and false
// if no pallet held that booking.
func releasePalletByBooking(pallets []Pallet, bookingID uuid.UUID, now time.Time) (int, bool) {
	for i := range pallets {
		for j, occ := range pallets[i].CurrentBookings {
			if occ.BookingID == bookingID {
				releaseAt(&pallets[i], j, now)
				return pallets[i].Number, true
			}
		}
	}
	return 0, false
}

// releaseByVehicle removes the occupant matching an uppercased plate from
// whichever pallet holds it.
func releaseByVehicle(pallets []Pallet, plate string, now time.Time) (int, bool) {
	upper := strings.ToUpper(plate)
	for i := range pallets {
		for j, occ := range pallets[i].CurrentBookings {
			if occ.VehicleNumber == upper {
				releaseAt(&pallets[i], j, now)
				return pallets[i].Number, true
			}
		}
	}
	return 0, false
}

func releaseAt(p *Pallet, occupantIdx int, now time.Time) {
	p.CurrentBookings = append(p.CurrentBookings[:occupantIdx], p.CurrentBookings[occupantIdx+1:]...)
	p.CurrentOccupancy = len(p.CurrentBookings)
	if p.CurrentOccupancy == 0 {
		p.Status = PalletAvailable
		p.OccupiedSince = nil
	} else if p.Status == PalletOccupied {
		p.Status = PalletAvailable
	}
}

func occupantAtPosition(occupants []Occupant, position int) bool {
	for _, o := range occupants {
		if o.Position == position {
			return true
		}
	}
	return false
}

func lowestFreePosition(occupants []Occupant) (int, bool) {
	for p := 1; p <= 6; p++ {
		if !occupantAtPosition(occupants, p) {
			return p, true
		}
	}
	return 0, false
}

// setMaintenance transitions a pallet to maintenance regardless of current
// occupancy, recording notes and a maintenance timestamp. Returns true if
// occupants were present at the time of the transition (callers use this to
// emit a warning alert).
func setMaintenance(pallets []Pallet, palletNumber int, notes string, now time.Time) (hadOccupants bool, err error) {
	idx := findPallet(pallets, palletNumber)
	if idx < 0 {
		return false, apierr.NotFound("pallet")
	}
	p := &pallets[idx]
	hadOccupants = p.CurrentOccupancy > 0
	p.Status = PalletMaintenance
	p.LastMaintenance = &now
	p.MaintenanceNotes = notes
	return hadOccupants, nil
}

// clearMaintenance returns a pallet to available, preserving any occupants
// recorded while it was under maintenance (spec.md does not force-release).
func clearMaintenance(pallets []Pallet, palletNumber int) error {
	idx := findPallet(pallets, palletNumber)
	if idx < 0 {
		return apierr.NotFound("pallet")
	}
	p := &pallets[idx]
	if p.CurrentOccupancy >= p.VehicleCapacity && p.VehicleCapacity > 0 {
		p.Status = PalletOccupied
	} else {
		p.Status = PalletAvailable
	}
	return nil
}

