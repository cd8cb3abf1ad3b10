package validation

// Request structs with validation rules shared by the booking and auth flows

// BookRideRequest represents a ride booking about to be submitted
type BookRideRequest struct {
	PickupLatitude       float64 `json:"pickup_latitude" validate:"latitude"`
	PickupLongitude      float64 `json:"pickup_longitude" validate:"longitude"`
	PickupAddress        string  `json:"pickup_address" validate:"required,max=500"`
	DestinationLatitude  float64 `json:"destination_latitude" validate:"latitude"`
	DestinationLongitude float64 `json:"destination_longitude" validate:"longitude"`
	DestinationAddress   string  `json:"destination_address" validate:"required,max=500"`
	VehicleType          string  `json:"vehicle_type" validate:"required,vehicle_type"`
}

// RequestOTPRequest represents a phone sign-in initiation
type RequestOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// VerifyOTPRequest represents an OTP verification attempt
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Code        string `json:"code" validate:"required,otp"`
}

// SubscribeRequest represents a subscription purchase
type SubscribeRequest struct {
	PlanType         string  `json:"plan_type" validate:"required,plan_type"`
	VehicleType      string  `json:"vehicle_type" validate:"required,vehicle_type"`
	DistanceIncluded float64 `json:"distance_included" validate:"required,gt=0,lte=10000"`
}

// UpdateProfileRequest represents a profile edit
type UpdateProfileRequest struct {
	FullName    string `json:"full_name" validate:"omitempty,min=1,max=200"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url,max=2000"`
}
