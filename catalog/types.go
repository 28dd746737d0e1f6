package catalog

import "time"

// Time point units.
const (
	UnitVersion   = "version"
	UnitTimestamp = "timestamp"
	UnitSnapshot  = "snapshot"
)

// TimePoint selects one version of a symbol for time-travel reads.
// A nil *TimePoint means the latest version.
type TimePoint struct {
	// Unit specifies how Value is interpreted ("version", "timestamp",
	// "snapshot").
	Unit string

	// Value is the time point value (format depends on Unit).
	// Examples:
	//   - Unit="version", Value="3" (negative values count back from the
	//     latest version, "-1" is the latest)
	//   - Unit="timestamp", Value="2024-01-15T10:30:00Z"
	//   - Unit="snapshot", Value="month-end"
	Value string
}

// AtVersion returns a time point selecting a version number.
func AtVersion(v int64) *TimePoint {
	return &TimePoint{Unit: UnitVersion, Value: formatInt(v)}
}

// AtTime returns a time point selecting the latest version written at or
// before t.
func AtTime(t time.Time) *TimePoint {
	return &TimePoint{Unit: UnitTimestamp, Value: t.UTC().Format(time.RFC3339Nano)}
}

// AtSnapshot returns a time point selecting a named snapshot.
func AtSnapshot(name string) *TimePoint {
	return &TimePoint{Unit: UnitSnapshot, Value: name}
}

// VersionInfo describes one version of a symbol.
type VersionInfo struct {
	Symbol    string
	Version   int64
	Timestamp time.Time
	Segments  int
	Rows      int64
}
