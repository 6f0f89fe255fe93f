package heal

import (
	"time"

	"github.com/jonwraymond/healops/health"
)

// Strategy is the recovery approach applied to an unhealthy dependency.
// The zero value is not a valid strategy and yields ReasonUnknownStrategy.
type Strategy int

const (
	// Reconnect waits briefly and re-probes an HTTP API.
	Reconnect Strategy = iota + 1
	// DatabaseReconnect waits longer and re-probes a database.
	DatabaseReconnect
	// NetworkRefresh waits briefly and re-probes a network check.
	NetworkRefresh
	// GenericRetry waits and always reports failure.
	GenericRetry
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case Reconnect:
		return "reconnect"
	case DatabaseReconnect:
		return "database_reconnect"
	case NetworkRefresh:
		return "network_refresh"
	case GenericRetry:
		return "generic_retry"
	default:
		return "unknown"
	}
}

// MarshalText encodes the strategy as its string form.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a strategy name. Unknown names become the zero value.
func (s *Strategy) UnmarshalText(text []byte) error {
	*s = ParseStrategy(string(text))
	return nil
}

// Delay is how long the strategy waits before re-probing.
func (s Strategy) Delay() time.Duration {
	switch s {
	case Reconnect:
		return 2 * time.Second
	case DatabaseReconnect:
		return 5 * time.Second
	case NetworkRefresh:
		return time.Second
	case GenericRetry:
		return 3 * time.Second
	default:
		return 0
	}
}

// ParseStrategy parses a strategy name. Unknown names return the zero value.
func ParseStrategy(s string) Strategy {
	switch s {
	case "reconnect":
		return Reconnect
	case "database_reconnect":
		return DatabaseReconnect
	case "network_refresh":
		return NetworkRefresh
	case "generic_retry":
		return GenericRetry
	default:
		return 0
	}
}

// StrategyForKind is the static dependency kind to strategy table.
func StrategyForKind(k health.Kind) Strategy {
	switch k {
	case health.KindAPI:
		return Reconnect
	case health.KindDatabase:
		return DatabaseReconnect
	case health.KindNetwork:
		return NetworkRefresh
	default:
		return GenericRetry
	}
}

// Reason classifies the outcome of a heal attempt.
type Reason string

const (
	ReasonCooldown        Reason = "cooldown"
	ReasonMaxAttempts     Reason = "max_attempts"
	ReasonReconnected     Reason = "reconnected"
	ReasonStillFailing    Reason = "still_failing"
	ReasonError           Reason = "error"
	ReasonUnknownStrategy Reason = "unknown_strategy"
)

func (s Strategy) successMessage() string {
	switch s {
	case DatabaseReconnect:
		return "Database reconnected successfully"
	case NetworkRefresh:
		return "Network connectivity restored"
	default:
		return "API service reconnected successfully"
	}
}

func (s Strategy) failureMessage() string {
	switch s {
	case DatabaseReconnect:
		return "Database still failing"
	case NetworkRefresh:
		return "Network still failing"
	case GenericRetry:
		return "Generic healing strategy applied - manual intervention may be required"
	default:
		return "API service still failing"
	}
}
