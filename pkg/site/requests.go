package site

// dailyHoursBody mirrors DailyHours for request payloads.
type dailyHoursBody struct {
	Open bool   `json:"open"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (b dailyHoursBody) toDomain() DailyHours {
	return DailyHours{Open: b.Open, From: b.From, To: b.To}
}

type pricingBody struct {
	BaseRateTwoWheeler   float64 `json:"baseRateTwoWheeler" validate:"gte=0"`
	BaseRateFourWheeler  float64 `json:"baseRateFourWheeler" validate:"gte=0"`
	MinChargeTwoWheeler  float64 `json:"minChargeTwoWheeler" validate:"gte=0"`
	MinChargeFourWheeler float64 `json:"minChargeFourWheeler" validate:"gte=0"`
	PeakMultiplier       float64 `json:"peakMultiplier" validate:"gte=0"`
	PeakWindowFrom       string  `json:"peakWindowFrom"`
	PeakWindowTo         string  `json:"peakWindowTo"`
}

func (b pricingBody) toDomain() Pricing {
	return Pricing{
		BaseRateTwoWheeler:   b.BaseRateTwoWheeler,
		BaseRateFourWheeler:  b.BaseRateFourWheeler,
		MinChargeTwoWheeler:  b.MinChargeTwoWheeler,
		MinChargeFourWheeler: b.MinChargeFourWheeler,
		PeakMultiplier:       b.PeakMultiplier,
		PeakWindowFrom:       b.PeakWindowFrom,
		PeakWindowTo:         b.PeakWindowTo,
	}
}

func toOperatingHours(m map[string]dailyHoursBody) OperatingHours {
	hours := make(OperatingHours, len(m))
	for day, h := range m {
		hours[day] = h.toDomain()
	}
	return hours
}

type createRequestBody struct {
	Name                 string                    `json:"name" validate:"required,min=2,max=200"`
	Address              string                    `json:"address" validate:"max=500"`
	Latitude             *float64                  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude            *float64                  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	OperatingHours       map[string]dailyHoursBody `json:"operatingHours"`
	Pricing              pricingBody               `json:"pricing"`
	DeclaredMachineCount int                        `json:"declaredMachineCount" validate:"gte=0"`
	DeclaredCapacity     int                        `json:"declaredCapacity" validate:"gte=0"`
}

func (b createRequestBody) toServiceRequest() CreateRequest {
	return CreateRequest{
		Name:                 b.Name,
		Address:              b.Address,
		Latitude:             b.Latitude,
		Longitude:            b.Longitude,
		OperatingHours:       toOperatingHours(b.OperatingHours),
		Pricing:              b.Pricing.toDomain(),
		DeclaredMachineCount: b.DeclaredMachineCount,
		DeclaredCapacity:     b.DeclaredCapacity,
	}
}

type updateRequestBody struct {
	Name                 string                    `json:"name" validate:"required,min=2,max=200"`
	Address              string                    `json:"address" validate:"max=500"`
	Latitude             *float64                  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude            *float64                  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	OperatingHours       map[string]dailyHoursBody `json:"operatingHours"`
	Pricing              pricingBody               `json:"pricing"`
	DeclaredMachineCount int                        `json:"declaredMachineCount" validate:"gte=0"`
	DeclaredCapacity     int                        `json:"declaredCapacity" validate:"gte=0"`
}

func (b updateRequestBody) toServiceRequest() UpdateRequest {
	return UpdateRequest{
		Name:                 b.Name,
		Address:              b.Address,
		Latitude:             b.Latitude,
		Longitude:            b.Longitude,
		OperatingHours:       toOperatingHours(b.OperatingHours),
		Pricing:              b.Pricing.toDomain(),
		DeclaredMachineCount: b.DeclaredMachineCount,
		DeclaredCapacity:     b.DeclaredCapacity,
	}
}

type assignUserRequestBody struct {
	UserID      string   `json:"userId" validate:"required,uuid"`
	SiteRole    string   `json:"siteRole" validate:"required,oneof=site-admin supervisor operator"`
	Permissions []string `json:"permissions"`
}
