package site

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatsCacheKey(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "site:stats:11111111-1111-1111-1111-111111111111", statsCacheKey(id))
}

func TestStatsCacheKey_Deterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, statsCacheKey(id), statsCacheKey(id))
}

func TestStatsCacheKey_DistinctPerSite(t *testing.T) {
	assert.NotEqual(t, statsCacheKey(uuid.New()), statsCacheKey(uuid.New()))
}

func TestToOperatingHours(t *testing.T) {
	body := map[string]dailyHoursBody{
		"monday": {Open: true, From: "09:00", To: "21:00"},
		"sunday": {Open: false},
	}
	hours := toOperatingHours(body)

	assert.Len(t, hours, 2)
	assert.True(t, hours["monday"].Open)
	assert.Equal(t, "09:00", hours["monday"].From)
	assert.False(t, hours["sunday"].Open)
}

func TestPricingBody_ToDomain(t *testing.T) {
	body := pricingBody{
		BaseRateTwoWheeler:   20,
		BaseRateFourWheeler:  40,
		MinChargeTwoWheeler:  20,
		MinChargeFourWheeler: 40,
		PeakMultiplier:       1.5,
		PeakWindowFrom:       "18:00",
		PeakWindowTo:         "21:00",
	}
	p := body.toDomain()

	assert.Equal(t, 20.0, p.BaseRateTwoWheeler)
	assert.Equal(t, 1.5, p.PeakMultiplier)
	assert.Equal(t, "18:00", p.PeakWindowFrom)
}

func TestCreateRequestBody_ToServiceRequest(t *testing.T) {
	body := createRequestBody{
		Name:                 "Koramangala Tower",
		DeclaredMachineCount: 3,
		DeclaredCapacity:     18,
		OperatingHours: map[string]dailyHoursBody{
			"monday": {Open: true, From: "07:00", To: "23:00"},
		},
	}
	req := body.toServiceRequest()

	assert.Equal(t, "Koramangala Tower", req.Name)
	assert.Equal(t, 3, req.DeclaredMachineCount)
	assert.True(t, req.OperatingHours["monday"].Open)
}
