package fingerprint

import (
	"errors"
	"net"
	"strings"
)

// NormalizeMAC returns mac as uppercase colon-separated octets.
// Dash and dot separated forms as well as octets missing their leading zero
// ("0:1b:2:...") are accepted.
func NormalizeMAC(mac string) (string, bool) {
	mac = strings.TrimSpace(mac)
	if mac == "" {
		return "", false
	}

	if parts := strings.FieldsFunc(mac, func(r rune) bool { return r == ':' || r == '-' }); len(parts) == 6 {
		for i, part := range parts {
			if len(part) == 1 {
				parts[i] = "0" + part
			}
		}
		mac = strings.Join(parts, ":")
	}

	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return strings.ToUpper(hw.String()), true
}

// ouiPrefix returns the first three octets of a normalized MAC
func ouiPrefix(mac string) string {
	if len(mac) < 8 {
		return ""
	}
	return mac[:8]
}

var (
	errNoNeighborTable = errors.New("no neighbor table")
	errUnknownPrefix   = errors.New("unknown oui prefix")
)
