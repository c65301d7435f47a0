package dto

import "time"

// HistoryFilter narrows the journal listing.
type HistoryFilter struct {
	Command string
	Label   string
	After   time.Time
	Before  time.Time
	Limit   int
	Offset  int
}
