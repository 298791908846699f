package machine

import (
	"strconv"

	"github.com/parklane/parkcore/pkg/site"
)

type specificationsBody struct {
	MaxLengthCM           float64  `json:"maxLengthCm" validate:"gte=0"`
	MaxWidthCM            float64  `json:"maxWidthCm" validate:"gte=0"`
	MaxHeightCM           float64  `json:"maxHeightCm" validate:"gte=0"`
	MaxWeightKG           float64  `json:"maxWeightKg" validate:"gte=0"`
	SupportedVehicleTypes []string `json:"supportedVehicleTypes" validate:"required,min=1,dive,oneof=two-wheeler four-wheeler"`
}

func (b specificationsBody) toDomain() Specifications {
	return Specifications{
		MaxLengthCM:           b.MaxLengthCM,
		MaxWidthCM:            b.MaxWidthCM,
		MaxHeightCM:           b.MaxHeightCM,
		MaxWeightKG:           b.MaxWeightKG,
		SupportedVehicleTypes: b.SupportedVehicleTypes,
	}
}

type createRequestBody struct {
	MachineCode       string             `json:"machineCode" validate:"required,parkcore_machine_code"`
	KinematicType     string             `json:"kinematicType" validate:"required,oneof=rotary puzzle"`
	TargetVehicleType string             `json:"targetVehicleType" validate:"required,oneof=two-wheeler four-wheeler"`
	PalletCount       int                `json:"palletCount" validate:"required,gte=1,lte=500"`
	Specifications    specificationsBody `json:"specifications"`
}

func (b createRequestBody) toServiceRequest() CreateRequest {
	return CreateRequest{
		MachineCode:       b.MachineCode,
		KinematicType:     b.KinematicType,
		TargetVehicleType: b.TargetVehicleType,
		PalletCount:       b.PalletCount,
		Specifications:    b.Specifications.toDomain(),
		OperatingHours:    site.OperatingHours{},
	}
}

type occupyRequestBody struct {
	BookingID string `json:"bookingId" validate:"required,uuid"`
	Plate     string `json:"plate" validate:"required,parkcore_plate"`
	Position  int    `json:"position" validate:"omitempty,gte=1,lte=6"`
}

type releaseVehicleRequestBody struct {
	Plate string `json:"plate" validate:"required,parkcore_plate"`
}

type maintenanceRequestBody struct {
	Notes string `json:"notes" validate:"max=500"`
}

type heartbeatRequestBody struct {
	FirmwareVersion string `json:"firmwareVersion" validate:"max=50"`
}

// ResolvePalletKey resolves a caller-supplied pallet key, which may be
// either the pallet's numeric number or its custom name, to the pallet
// number stored on the machine (spec.md §4.D.3).
func ResolvePalletKey(pallets []Pallet, key string) (int, bool) {
	if n, err := strconv.Atoi(key); err == nil {
		if idx := findPallet(pallets, n); idx >= 0 {
			return pallets[idx].Number, true
		}
	}
	for _, p := range pallets {
		if p.CustomName != "" && p.CustomName == key {
			return p.Number, true
		}
	}
	return 0, false
}
