package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DescribeTimePoint renders a time point for user-facing messages.
//
// Example:
//
//	catalog.DescribeTimePoint(nil)                  // "the latest version"
//	catalog.DescribeTimePoint(catalog.AtVersion(3)) // "the version number 3"
func DescribeTimePoint(at *TimePoint) string {
	if at == nil {
		return "the latest version"
	}
	switch at.Unit {
	case UnitTimestamp:
		if t, err := time.Parse(time.RFC3339Nano, at.Value); err == nil {
			return "the as_of date " + t.Format("2006-01-02 15:04:05 MST")
		}
		return "the as_of date " + at.Value
	case UnitSnapshot:
		return "the snapshot name " + at.Value
	case UnitVersion:
		return "the version number " + at.Value
	}
	return fmt.Sprintf("the %s %s", at.Unit, at.Value)
}

// CheckSymbolExists probes src for symbol at the given point in time.
// When the symbol does not exist it returns false and a message suitable
// for showing to the user.
//
// Example:
//
//	ok, msg, err := catalog.CheckSymbolExists(ctx, lib, "prices", nil)
//	// msg: "Symbol does not exist for the latest version from symbol prices"
func CheckSymbolExists(ctx context.Context, src SegmentSource, symbol string, at *TimePoint) (bool, string, error) {
	ok, err := src.HasSymbol(ctx, symbol, at)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, fmt.Sprintf("Symbol does not exist for %s from symbol %s", DescribeTimePoint(at), symbol), nil
	}
	return true, "", nil
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }
