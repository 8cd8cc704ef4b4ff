// Package phone validates customer and staff mobile numbers.
package phone

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

const DefaultRegion = "IN"

// Normalize parses raw in region and returns the E.164 form.
func Normalize(raw string, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone number is required")
	}
	if region == "" {
		region = DefaultRegion
	}

	p, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("phone number %q is not valid", raw)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid", raw)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
