package risk

import (
	"fmt"
	"strings"
)

// Tier is the ordinal risk severity: LOW < MEDIUM < HIGH < CRITICAL.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCritical
)

var tierNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (t Tier) String() string {
	if t < TierLow || t > TierCritical {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier by name so JSON output stays readable.
func (t Tier) MarshalText() ([]byte, error) {
	if t < TierLow || t > TierCritical {
		return nil, fmt.Errorf("risk: invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText decodes a tier name (case-insensitive).
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier parses a tier name such as "high" or "CRITICAL".
func ParseTier(s string) (Tier, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return TierLow, fmt.Errorf("risk: unknown tier %q", s)
}
