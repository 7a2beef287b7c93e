package model

// StatusKind enumerates tracker states.
type StatusKind int

const (
	StatusDisconnected StatusKind = iota
	StatusConnected
	StatusTracking
	StatusCalibrating
	StatusError
)

// String returns the lowercase state name used in logs and metrics labels.
func (k StatusKind) String() string {
	switch k {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusTracking:
		return "tracking"
	case StatusCalibrating:
		return "calibrating"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the tracker's current state. Reason is set only for StatusError.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// ErrorStatus builds an error status with a reason.
func ErrorStatus(reason string) Status {
	return Status{Kind: StatusError, Reason: reason}
}

// String renders the status for logs; error states include the reason.
func (s Status) String() string {
	if s.Kind == StatusError && s.Reason != "" {
		return "error: " + s.Reason
	}
	return s.Kind.String()
}
