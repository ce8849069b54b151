package types

// Validate checks that a record carries the fields every stored scan needs
func (r *ScanRecord) Validate() error {
	if !r.Network.IsValid() {
		return &ValidationError{Field: "network", Message: "network is required"}
	}
	if r.StartTime.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp is required"}
	}
	switch r.State {
	case ScanCompleted, ScanCancelled:
		if r.TotalFound != len(r.Hosts) {
			return &ValidationError{Field: "total_found", Message: "total_found does not match hosts"}
		}
		if r.TotalFound > r.TotalScanned {
			return &ValidationError{Field: "total_found", Message: "total_found exceeds total_scanned"}
		}
	case ScanFailed:
		if r.Error == "" {
			return &ValidationError{Field: "error", Message: "failed record requires an error"}
		}
	default:
		return &ValidationError{Field: "state", Message: "unknown state " + string(r.State)}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
