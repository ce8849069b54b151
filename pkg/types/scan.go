package types

import (
	"encoding/json"
	"net/netip"
	"time"
)

const (
	// Unknown is the sentinel for a fingerprint field that could not be resolved.
	Unknown = "Unknown"
	// UnknownVendor is used when a MAC address is known but its OUI is not.
	UnknownVendor = "Unknown Vendor"
)

// DeviceFingerprint is the identity/classification data collected for one live host
type DeviceFingerprint struct {
	Hostname   string `json:"hostname"`
	MACAddress string `json:"mac_address"`
	Vendor     string `json:"vendor"`
	DeviceType string `json:"device_type"`
}

// Host pairs a live address with its fingerprint
type Host struct {
	IP netip.Addr `json:"ip"`
	DeviceFingerprint
}

// ScanState is the terminal state of a stored scan
type ScanState string

const (
	ScanCompleted ScanState = "completed"
	ScanFailed    ScanState = "failed"
	ScanCancelled ScanState = "cancelled"
)

// ScanRecord is the immutable outcome of one scan.
// Failed records carry Error and no hosts.
type ScanRecord struct {
	ID           int         `json:"id"`
	RunID        string      `json:"run_id"`
	Network      NetworkSpec `json:"network"`
	State        ScanState   `json:"state"`
	StartTime    time.Time   `json:"timestamp"`
	Duration     Duration    `json:"duration"`
	Hosts        []Host      `json:"hosts"`
	TotalScanned int         `json:"total_scanned"`
	TotalFound   int         `json:"total_found"`
	Error        string      `json:"error,omitempty"`
}

// Failed reports whether the scan ended with an error
func (r *ScanRecord) Failed() bool {
	return r.State == ScanFailed
}

// Duration is a time.Duration that travels as a Go duration string
// ("1.25s") in JSON. Values are expected to be rounded to milliseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ScanStatus is a point-in-time view of the current scan
type ScanStatus struct {
	Running      bool         `json:"running"`
	State        string       `json:"state"`
	CurrentScan  *NetworkSpec `json:"current_scan"`
	TotalHosts   int          `json:"total_hosts"`
	ScannedHosts int          `json:"scanned_hosts"`
	FoundHosts   int          `json:"found_hosts"`
	Progress     int          `json:"progress"`
	LastScanID   int          `json:"last_scan_id,omitempty"`
}

// Status states
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = string(ScanCompleted)
	StateFailed    = string(ScanFailed)
	StateCancelled = string(ScanCancelled)
)
