package customer

type vehicleInputBody struct {
	Plate string `json:"plate" validate:"required,parkcore_plate"`
	Class string `json:"class" validate:"required,oneof=two-wheeler four-wheeler"`
	Make  string `json:"make" validate:"max=50"`
	Model string `json:"model" validate:"max=50"`
	Color string `json:"color" validate:"max=30"`
}

func (b vehicleInputBody) toDomain() VehicleInput {
	return VehicleInput{Plate: b.Plate, Class: b.Class, Make: b.Make, Model: b.Model, Color: b.Color}
}

type createRequestBody struct {
	FirstName string             `json:"firstName" validate:"required,max=100"`
	LastName  string             `json:"lastName" validate:"max=100"`
	Phone     string             `json:"phone" validate:"required,parkcore_phone"`
	Email     string             `json:"email" validate:"omitempty,parkcore_email,max=255"`
	Vehicle   *vehicleInputBody  `json:"vehicle"`
}

func (b createRequestBody) toServiceRequest() CreateRequest {
	req := CreateRequest{
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Phone:     b.Phone,
		Email:     b.Email,
	}
	if b.Vehicle != nil {
		v := b.Vehicle.toDomain()
		req.Vehicle = &v
	}
	return req
}

type createMembershipRequestBody struct {
	Type                string   `json:"type" validate:"required,oneof=monthly quarterly yearly premium"`
	TermMonths          int      `json:"termMonths" validate:"required,gte=1,lte=60"`
	CoveredVehicleTypes []string `json:"coveredVehicleTypes" validate:"required,min=1,dive,oneof=two-wheeler four-wheeler"`
	PaymentAmount       *float64 `json:"paymentAmount" validate:"omitempty,gte=0"`
	PaymentMethod       string   `json:"paymentMethod" validate:"required"`
	TransactionRef      string   `json:"transactionRef"`
}

func (b createMembershipRequestBody) toServiceRequest() CreateMembershipRequest {
	return CreateMembershipRequest{
		Type:                b.Type,
		TermMonths:          b.TermMonths,
		CoveredVehicleTypes: b.CoveredVehicleTypes,
		PaymentAmount:       b.PaymentAmount,
		PaymentMethod:       b.PaymentMethod,
		TransactionRef:      b.TransactionRef,
	}
}

type validateMembershipRequestBody struct {
	MembershipNumber string `json:"membershipNumber" validate:"required,parkcore_membership_number"`
	PIN              string `json:"pin" validate:"required,parkcore_membership_pin"`
	ForVehicleType   string `json:"forVehicleType" validate:"omitempty,oneof=two-wheeler four-wheeler"`
}

type softDeleteRequestBody struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
