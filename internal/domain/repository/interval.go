package repository

// ChartInterval is the bar resolution requested from a series source.
type ChartInterval string

const (
	Interval1m  ChartInterval = "1m"
	Interval5m  ChartInterval = "5m"
	Interval15m ChartInterval = "15m"
	Interval1h  ChartInterval = "1h"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv ChartInterval) bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval1h:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() ChartInterval { return Interval5m }

// NormalizeInterval converts a raw string to a valid interval (or default).
func NormalizeInterval(s string) ChartInterval {
	iv := ChartInterval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// Seconds is the bar width, used to bucket stored ticks into bars.
func (iv ChartInterval) Seconds() int {
	switch iv {
	case Interval1m:
		return 60
	case Interval15m:
		return 900
	case Interval1h:
		return 3600
	default:
		return 300
	}
}
