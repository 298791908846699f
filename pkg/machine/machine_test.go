package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicleCapacity(t *testing.T) {
	assert.Equal(t, 1, VehicleCapacity(KinematicRotary, VehicleFourWheeler))
	assert.Equal(t, 1, VehicleCapacity(KinematicPuzzle, VehicleFourWheeler))
	assert.Equal(t, 6, VehicleCapacity(KinematicRotary, VehicleTwoWheeler))
	assert.Equal(t, 3, VehicleCapacity(KinematicPuzzle, VehicleTwoWheeler))
}

func TestGeneratePalletNumbers_Rotary(t *testing.T) {
	nums := GeneratePalletNumbers(KinematicRotary, 8)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, nums)
}

func TestGeneratePalletNumbers_PuzzleExactFloors(t *testing.T) {
	nums := GeneratePalletNumbers(KinematicPuzzle, 8)
	assert.Equal(t, []int{101, 102, 103, 104, 201, 202, 203, 204}, nums)
}

// TestGeneratePalletNumbers_PuzzleTruncation covers the documented edge case
// (spec.md §9): a pallet count that isn't a multiple of four leaves the
// last floor under-filled rather than spilling into a new one.
func TestGeneratePalletNumbers_PuzzleTruncation(t *testing.T) {
	nums := GeneratePalletNumbers(KinematicPuzzle, 10)
	assert.Equal(t, []int{101, 102, 103, 104, 201, 202, 203, 204, 301, 302}, nums)
}

func TestInitPallets(t *testing.T) {
	pallets := InitPallets(KinematicRotary, VehicleTwoWheeler, 3)
	assert.Len(t, pallets, 3)
	for _, p := range pallets {
		assert.Equal(t, PalletAvailable, p.Status)
		assert.Equal(t, 6, p.VehicleCapacity)
		assert.Equal(t, 0, p.CurrentOccupancy)
		assert.Empty(t, p.CurrentBookings)
	}
}

func TestRecomputeCapacity(t *testing.T) {
	pallets := []Pallet{
		{Number: 1, Status: PalletAvailable, VehicleCapacity: 6, CurrentOccupancy: 2},
		{Number: 2, Status: PalletOccupied, VehicleCapacity: 1, CurrentOccupancy: 1},
		{Number: 3, Status: PalletMaintenance, VehicleCapacity: 6, CurrentOccupancy: 0},
	}
	c := RecomputeCapacity(pallets)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 4, c.Available) // 6-2 from pallet 1
	assert.Equal(t, 1, c.Occupied)
	assert.Equal(t, 1, c.Maintenance)
}

func TestResolvePalletKey(t *testing.T) {
	pallets := []Pallet{
		{Number: 101, CustomName: "north-entrance"},
		{Number: 102},
	}
	n, ok := ResolvePalletKey(pallets, "101")
	assert.True(t, ok)
	assert.Equal(t, 101, n)

	n, ok = ResolvePalletKey(pallets, "north-entrance")
	assert.True(t, ok)
	assert.Equal(t, 101, n)

	_, ok = ResolvePalletKey(pallets, "999")
	assert.False(t, ok)
}
