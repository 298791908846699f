package booking

import (
	"github.com/parklane/parkcore/internal/validation"
)

type createRequestBody struct {
	FirstName           string `json:"firstName" validate:"required,max=100"`
	LastName            string `json:"lastName" validate:"max=100"`
	PhoneNumber         string `json:"phoneNumber" validate:"required,parkcore_phone"`
	VehicleNumber       string `json:"vehicleNumber" validate:"required,parkcore_plate"`
	VehicleType         string `json:"vehicleType" validate:"required,oneof=two-wheeler four-wheeler"`
	MachineNumber       string `json:"machineNumber" validate:"required,parkcore_machine_code"`
	PalletNumber        int    `json:"palletNumber" validate:"required,gte=1"`
	SpecialInstructions string `json:"specialInstructions" validate:"max=500"`
}

func (b createRequestBody) toServiceRequest() CreateRequest {
	return CreateRequest{
		FirstName:           b.FirstName,
		LastName:            b.LastName,
		PhoneNumber:         b.PhoneNumber,
		VehicleNumber:       validation.NormalizePlate(b.VehicleNumber),
		VehicleType:         b.VehicleType,
		MachineNumber:       b.MachineNumber,
		PalletNumber:        b.PalletNumber,
		SpecialInstructions: b.SpecialInstructions,
	}
}

type verifyOTPRequestBody struct {
	Code string `json:"code" validate:"required,parkcore_otp"`
}

type completeRequestBody struct {
	Amount            float64 `json:"amount" validate:"gte=0"`
	Method            string  `json:"method" validate:"max=30"`
	TransactionRef    string  `json:"transactionRef" validate:"max=100"`
	MembershipNumber  string  `json:"membershipNumber" validate:"omitempty,parkcore_membership_number"`
	BaseRate          float64 `json:"baseRate" validate:"gte=0"`
	AdditionalCharges float64 `json:"additionalCharges" validate:"gte=0"`
	Discount          float64 `json:"discount" validate:"gte=0"`
	Tax               float64 `json:"tax" validate:"gte=0"`
}

type cancelRequestBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

type extendRequestBody struct {
	Hours   int `json:"hours" validate:"gte=0"`
	Minutes int `json:"minutes" validate:"gte=0,lte=59"`
}
