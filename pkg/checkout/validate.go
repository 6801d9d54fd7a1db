package checkout

import (
	"regexp"
	"strings"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
)

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	emailPattern   = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// Validate checks the form field by field and returns a validation error for
// the first field that fails.
func Validate(f models.ShippingForm) error {
	switch {
	case blank(f.FullName):
		return apperr.Validation("full_name", "Please enter your full name")
	case !phonePattern.MatchString(strings.TrimSpace(f.Phone)):
		return apperr.Validation("phone", "Please enter a valid 10-digit phone number")
	case !emailPattern.MatchString(strings.TrimSpace(f.Email)):
		return apperr.Validation("email", "Please enter a valid email address")
	case blank(f.Address):
		return apperr.Validation("address", "Please enter your delivery address")
	case blank(f.City):
		return apperr.Validation("city", "Please enter your city")
	case blank(f.State):
		return apperr.Validation("state", "Please enter your state")
	case !pincodePattern.MatchString(strings.TrimSpace(f.Pincode)):
		return apperr.Validation("pincode", "Please enter a valid 6-digit pincode")
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
