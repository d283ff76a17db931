// Package validation provides input validation for donationwatch.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// Project slug validation
// Simple slugs: lowercase alphanumeric with hyphens, 2-64 chars
var slugRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}[a-z0-9]$`)

// Currency symbols: uppercase letters and digits, 1-12 chars
var currencyRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,12}$`)

// ValidateSlug validates a project slug
func ValidateSlug(slug string) error {
	if len(slug) < 2 {
		return errors.New("slug too short (min 2 chars)")
	}
	if len(slug) > 64 {
		return errors.New("slug too long (max 64 chars)")
	}
	if !slugRegex.MatchString(slug) {
		return errors.New("invalid slug: must be lowercase alphanumeric with hyphens, starting with a letter")
	}
	if strings.Contains(slug, "..") || strings.Contains(slug, "--") {
		return errors.New("invalid characters in slug")
	}
	return nil
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateTxHash validates a transaction hash
func ValidateTxHash(hash string) error {
	if len(hash) != 66 {
		return errors.New("invalid transaction hash length: must be 66 characters (0x + 64 hex)")
	}
	if !strings.HasPrefix(hash, "0x") {
		return errors.New("invalid transaction hash: must start with 0x")
	}
	if !isHex(hash[2:]) {
		return errors.New("invalid transaction hash: contains non-hex characters")
	}
	return nil
}

// ValidateNetworkID validates a network ID
func ValidateNetworkID(networkID int) error {
	if networkID <= 0 {
		return errors.New("network ID must be positive")
	}
	return nil
}

// ValidateAmount validates a claimed donation amount
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// ValidateCurrency validates a currency symbol
func ValidateCurrency(currency string) error {
	if currency == "" {
		return errors.New("currency cannot be empty")
	}
	if !currencyRegex.MatchString(currency) {
		return errors.New("invalid currency: must be 1-12 alphanumeric characters")
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return len(s) > 0
}
