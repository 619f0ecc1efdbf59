// Package identify maps a presented credential to a stable person identifier.
//
// Identification is a tagged variant: each method has its own validation and
// lookup path, dispatched in one place, so adding a method never touches the
// attendance core.
package identify

import (
	"strings"

	dErrors "presence/pkg/domain-errors"
)

// Method tags the kind of credential presented at a room.
type Method string

const (
	// MethodEnrollment is a numeric enrollment code.
	MethodEnrollment Method = "enrollment"
	// MethodNationalID is a national-ID-like code with a check digit.
	// Syntactically invalid values are rejected before any lookup.
	MethodNationalID Method = "national_id"
	// MethodScannedCode is an opaque scanned token (badge, QR).
	MethodScannedCode Method = "scanned_code"
	// MethodBiometric is a biometric token validated by an external matcher.
	MethodBiometric Method = "biometric"
)

// ParseMethod validates a wire-level method string.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodEnrollment, MethodNationalID, MethodScannedCode, MethodBiometric:
		return m, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown identification method: "+s)
	}
}

// Identification is one presented credential.
type Identification struct {
	Method Method
	Value  string
}

// Validate rejects structurally malformed credentials before any lookup.
func (i Identification) Validate() error {
	if _, err := ParseMethod(string(i.Method)); err != nil {
		return err
	}
	value := strings.TrimSpace(i.Value)
	if value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identification value must not be empty")
	}
	switch i.Method {
	case MethodEnrollment:
		if !isDigits(value) {
			return dErrors.New(dErrors.CodeValidation, "enrollment code must be numeric")
		}
	case MethodNationalID:
		if !ValidNationalID(value) {
			return dErrors.New(dErrors.CodeValidation, "national id failed checksum validation")
		}
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
