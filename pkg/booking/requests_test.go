package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateRequestBody_ToServiceRequest(t *testing.T) {
	body := createRequestBody{
		FirstName:     "Asha",
		LastName:      "Rao",
		PhoneNumber:   "9876543210",
		VehicleNumber: "ka01ab1234",
		VehicleType:   "two-wheeler",
		MachineNumber: "M001",
		PalletNumber:  3,
	}

	req := body.toServiceRequest()
	assert.Equal(t, "KA01AB1234", req.VehicleNumber)
	assert.Equal(t, "M001", req.MachineNumber)
	assert.Equal(t, 3, req.PalletNumber)
}
