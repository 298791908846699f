package customer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMembership_Covers(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	m := &Membership{
		CoveredVehicleTypes: []string{VehicleTwoWheeler},
		IsActive:            true,
		ExpiresAt:           now.Add(24 * time.Hour),
	}
	assert.True(t, m.Covers(VehicleTwoWheeler, now))
	assert.False(t, m.Covers(VehicleFourWheeler, now))
}

func TestMembership_Covers_ExpiredFails(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &Membership{
		CoveredVehicleTypes: []string{VehicleTwoWheeler},
		IsActive:            true,
		ExpiresAt:           now.Add(-time.Hour),
	}
	assert.False(t, m.Covers(VehicleTwoWheeler, now))
}

func TestMembership_Covers_InactiveFails(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &Membership{
		CoveredVehicleTypes: []string{VehicleTwoWheeler},
		IsActive:            false,
		ExpiresAt:           now.Add(time.Hour),
	}
	assert.False(t, m.Covers(VehicleTwoWheeler, now))
}

func TestMembership_IsSubsetOf(t *testing.T) {
	m := &Membership{CoveredVehicleTypes: []string{VehicleTwoWheeler}}
	assert.True(t, m.isSubsetOf([]string{VehicleTwoWheeler}))
	assert.False(t, m.isSubsetOf([]string{VehicleFourWheeler}))
	assert.False(t, m.isSubsetOf([]string{VehicleTwoWheeler, VehicleFourWheeler}))
}

// TestMergeCoverage_ScenarioFive mirrors the membership coverage extension
// scenario: an active yearly membership covering {two-wheeler} is extended
// with {four-wheeler}; the merged set covers both classes and existing
// expiry is left untouched by the caller (CreateMembership never rewrites
// ExpiresAt on the extend path).
func TestMergeCoverage_ScenarioFive(t *testing.T) {
	merged := mergeCoverage([]string{VehicleTwoWheeler}, []string{VehicleFourWheeler})
	assert.ElementsMatch(t, []string{VehicleTwoWheeler, VehicleFourWheeler}, merged)
}

func TestMergeCoverage_NoDuplicates(t *testing.T) {
	merged := mergeCoverage([]string{VehicleTwoWheeler}, []string{VehicleTwoWheeler})
	assert.Equal(t, []string{VehicleTwoWheeler}, merged)
}

func TestDefaultPlanAmount(t *testing.T) {
	assert.Equal(t, 500.0, DefaultPlanAmount(PlanMonthly))
	assert.Equal(t, 1200.0, DefaultPlanAmount(PlanQuarterly))
	assert.Equal(t, 4000.0, DefaultPlanAmount(PlanYearly))
	assert.Equal(t, 6000.0, DefaultPlanAmount(PlanPremium))
	assert.Equal(t, 0.0, DefaultPlanAmount("unknown"))
}

func TestCustomer_FullName(t *testing.T) {
	c := Customer{FirstName: "Asha", LastName: "Rao"}
	assert.Equal(t, "Asha Rao", c.FullName())

	noLast := Customer{FirstName: "Asha"}
	assert.Equal(t, "Asha", noLast.FullName())
}

func TestCustomer_ActiveVehicle(t *testing.T) {
	c := Customer{Vehicles: []Vehicle{
		{Plate: "MH12AB1234", IsActive: true},
		{Plate: "KA01CD5678", IsActive: false},
	}}

	v, ok := c.ActiveVehicle("MH12AB1234")
	assert.True(t, ok)
	assert.Equal(t, "MH12AB1234", v.Plate)

	_, ok = c.ActiveVehicle("KA01CD5678")
	assert.False(t, ok, "inactive vehicles must not match")

	_, ok = c.ActiveVehicle("XX00XX0000")
	assert.False(t, ok)
}
