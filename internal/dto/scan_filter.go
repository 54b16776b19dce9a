package dto

import "time"

// ScanFilters describe user-provided filters to narrow the scan list.
type ScanFilters struct {
	Source     string
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Page       int
	Limit      int
}
