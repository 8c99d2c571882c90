// Package phone normalizes Zimbabwean mobile numbers and resolves the mobile
// network operator that owns them.
package phone

import "strings"

// CountryCode is the international dialling prefix applied to national numbers.
const CountryCode = "263"

// Carrier is a mobile network operator.
type Carrier string

const (
	CarrierEconet  Carrier = "Econet"
	CarrierNetOne  Carrier = "NetOne"
	CarrierTelecel Carrier = "Telecel"
	CarrierUnknown Carrier = "Unknown"
)

var carrierPrefixes = []struct {
	prefix  string
	carrier Carrier
}{
	{"26377", CarrierEconet},
	{"26378", CarrierEconet},
	{"26371", CarrierNetOne},
	{"26373", CarrierNetOne},
	{"26375", CarrierTelecel},
	{"26376", CarrierTelecel},
}

// Normalize strips every non-digit and replaces a leading national 0 with the
// country code. It never fails; malformed input is caught by IsValid.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + len(CountryCode))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		return CountryCode + digits[1:]
	}
	return digits
}

// IsValid reports whether a canonical number is a 12 digit mobile number.
func IsValid(canonical string) bool {
	return len(canonical) == 12 && strings.HasPrefix(canonical, CountryCode+"7")
}

// ResolveCarrier maps a canonical number to its carrier by prefix.
func ResolveCarrier(canonical string) Carrier {
	for _, p := range carrierPrefixes {
		if strings.HasPrefix(canonical, p.prefix) {
			return p.carrier
		}
	}
	return CarrierUnknown
}

// Number is a parsed phone number.
type Number struct {
	Canonical string
	Valid     bool
	Carrier   Carrier
}

// Parse normalizes raw and resolves validity and carrier in one step.
func Parse(raw string) Number {
	c := Normalize(raw)
	return Number{
		Canonical: c,
		Valid:     IsValid(c),
		Carrier:   ResolveCarrier(c),
	}
}
