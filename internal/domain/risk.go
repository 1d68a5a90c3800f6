// Package domain holds the data model shared across the ingestion and
// analysis pipeline: tasks in flight, per-log results, batch summaries,
// and the dashboard snapshot.
package domain

import "strings"

// RiskLevel is the closed set of classifications an analysis can produce.
// Any value outside this set is coerced to RiskUnknown on read.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskError    RiskLevel = "error"
	RiskWarning  RiskLevel = "warning"
	RiskInfo     RiskLevel = "info"
	RiskSafe     RiskLevel = "safe"
	RiskUnknown  RiskLevel = "unknown"
)

// ParseRiskLevel maps a string to the closed RiskLevel enum, coercing any
// unrecognized value to RiskUnknown rather than failing.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskCritical:
		return RiskCritical
	case RiskError:
		return RiskError
	case RiskWarning:
		return RiskWarning
	case RiskInfo:
		return RiskInfo
	case RiskSafe:
		return RiskSafe
	default:
		return RiskUnknown
	}
}

// ValidRiskLevel reports whether s is one of the levels the analyzer is
// permitted to emit on write. Unlike ParseRiskLevel, this does not coerce —
// callers writing analyzer output must reject unknown values outright.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskCritical, RiskError, RiskWarning, RiskInfo, RiskSafe:
		return true
	default:
		return false
	}
}

// AllRiskLevels lists every level, in the order used for dashboard counters.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskError, RiskWarning, RiskInfo, RiskSafe, RiskUnknown}
}
