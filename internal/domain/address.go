package domain

import (
	"errors"
	"strings"
)

// ErrInvalidAddress is returned when a token address is not 0x + 40 hex chars.
var ErrInvalidAddress = errors.New("invalid token address")

// AddressLength is the length of a normalized address including the 0x prefix.
const AddressLength = 42

// NormalizeAddress trims, lowercases and validates an EVM address.
// Every reader and writer keys records by the returned value.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if len(addr) != AddressLength || !strings.HasPrefix(addr, "0x") {
		return "", ErrInvalidAddress
	}
	for i := 2; i < len(addr); i++ {
		c := addr[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", ErrInvalidAddress
		}
	}
	return addr, nil
}

// IsZeroAddress reports whether addr is the all-zero address.
func IsZeroAddress(addr string) bool {
	return addr == "0x0000000000000000000000000000000000000000"
}
