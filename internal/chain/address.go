package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDecode marks malformed on-chain data that cannot be parsed into the
// expected shape. It is never retried: it points at a wrong contract address
// or a genuine chain-data anomaly that needs human review.
var ErrDecode = errors.New("malformed chain data")

// Address is a 20-byte account address canonicalized to lowercase hex with a
// 0x prefix (42 characters).
type Address string

// ZeroAddress is the burn/null address.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases and trims an address without validating it;
// empty or odd input passes through, matching the tolerant comparisons used
// when filtering logs.
func NormalizeAddress(addr string) Address {
	return Address(strings.ToLower(strings.TrimSpace(addr)))
}

// ParseAddress validates and canonicalizes a 0x-prefixed 40-hex-digit address.
func ParseAddress(addr string) (Address, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(a, "0x") || len(a) != 42 {
		return "", fmt.Errorf("bad address %q: %w", addr, ErrDecode)
	}
	for _, c := range a[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("bad address %q: %w", addr, ErrDecode)
		}
	}
	return Address(a), nil
}

// TopicForAddress left-pads an address with zeros into a 32-byte log topic.
func TopicForAddress(addr Address) (string, error) {
	a := string(addr)
	if !strings.HasPrefix(a, "0x") || len(a) != 42 {
		return "", fmt.Errorf("bad address %q: %w", addr, ErrDecode)
	}
	return "0x" + strings.Repeat("0", 24) + a[2:], nil
}

// AddressFromTopic recovers an address from a 32-byte topic by taking its low
// 20 bytes.
func AddressFromTopic(topic string) (Address, error) {
	t := strings.ToLower(topic)
	if !strings.HasPrefix(t, "0x") || len(t) != 66 {
		return "", fmt.Errorf("bad topic %q: %w", topic, ErrDecode)
	}
	return Address("0x" + t[len(t)-40:]), nil
}
