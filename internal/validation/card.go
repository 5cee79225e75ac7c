package validation

import (
	"regexp"
	"strings"
)

// CardNetwork identifies the payment network of a card number.
type CardNetwork string

// Card network constants
const (
	NetworkVisa       CardNetwork = "visa"
	NetworkMastercard CardNetwork = "mastercard"
	NetworkAmex       CardNetwork = "amex"
	NetworkUnknown    CardNetwork = "unknown"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{16}$`)
	cvcPattern        = regexp.MustCompile(`^\d{3,4}$`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ClassifyCardNetwork returns the network a card number belongs to based on
// its prefix.
func ClassifyCardNetwork(number string) CardNetwork {
	switch {
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return NetworkAmex
	case strings.HasPrefix(number, "4"):
		return NetworkVisa
	case strings.HasPrefix(number, "5"):
		return NetworkMastercard
	}
	return NetworkUnknown
}

// IsStructurallyValidCardNumber reports whether the string is exactly 16
// ASCII digits. This intentionally accepts amex numbers, whose real length
// is 15; changing that is a product decision, not a bug fix.
func IsStructurallyValidCardNumber(number string) bool {
	return cardNumberPattern.MatchString(number)
}

// IsValidCVC reports whether the string is a 3 or 4 digit security code.
func IsValidCVC(cvc string) bool {
	return cvcPattern.MatchString(cvc)
}

// IsValidEmail reports whether the string has the shape local@domain with no
// whitespace and at least one dot in the domain.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
