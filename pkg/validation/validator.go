package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ecoride/ecoride/pkg/common"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	phoneRegex = regexp.MustCompile(`^[1-9][0-9]{9}$`) // 10-digit local number, no leading zero
	otpRegex   = regexp.MustCompile(`^[0-9]{4}$|^[0-9]{6}$`)
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("latitude", validateLatitude)
	_ = Validate.RegisterValidation("longitude", validateLongitude)
	_ = Validate.RegisterValidation("phone", validatePhoneTag)
	_ = Validate.RegisterValidation("otp", validateOTPTag)
	_ = Validate.RegisterValidation("vehicle_type", validateVehicleType)
	_ = Validate.RegisterValidation("ride_status", validateRideStatus)
	_ = Validate.RegisterValidation("plan_type", validatePlanType)
}

// ValidateStruct validates a struct and converts validator failures into a
// single ValidationError suitable for display.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s is invalid (%s)", fieldErr.Field(), fieldErr.Tag()))
	}
	return common.NewValidationError(strings.Join(fields, "; "))
}

// ValidatePhone checks a local-format phone number: exactly the configured
// digit count, no leading zero.
func ValidatePhone(phone string, digits int) error {
	phone = strings.TrimSpace(phone)
	if digits == 10 {
		if !phoneRegex.MatchString(phone) {
			return common.NewValidationError("phone number must be a 10-digit number")
		}
		return nil
	}
	if len(phone) != digits || !allDigits(phone) || phone[0] == '0' {
		return common.NewValidationError(fmt.Sprintf("phone number must be a %d-digit number", digits))
	}
	return nil
}

// ValidateOTP checks a one-time code of exactly the configured length.
func ValidateOTP(code string, length int) error {
	code = strings.TrimSpace(code)
	if len(code) != length || !allDigits(code) {
		return common.NewValidationError(fmt.Sprintf("verification code must be %d digits", length))
	}
	return nil
}

// ValidateCoordinate checks a finite latitude/longitude pair.
func ValidateCoordinate(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 || latitude != latitude {
		return common.NewValidationError("latitude must be between -90 and 90")
	}
	if longitude < -180 || longitude > 180 || longitude != longitude {
		return common.NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validatePhoneTag checks the supported locale's 10-digit format
func validatePhoneTag(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// validateOTPTag accepts 4- or 6-digit codes; exact length is enforced by the
// auth service against its configuration
func validateOTPTag(fl validator.FieldLevel) bool {
	return otpRegex.MatchString(fl.Field().String())
}

func validateVehicleType(fl validator.FieldLevel) bool {
	vt := fl.Field().String()
	return vt == "car" || vt == "bike"
}

func validateRideStatus(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	switch status {
	case "pending", "accepted", "in_progress", "completed", "cancelled":
		return true
	}
	return false
}

func validatePlanType(fl validator.FieldLevel) bool {
	plan := fl.Field().String()
	return plan == "daily" || plan == "weekly" || plan == "monthly"
}
