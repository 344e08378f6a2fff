package domain

import (
	"strconv"
	"time"
)

// FailureRecord is written once for every job that ends in a permanent failure.
type FailureRecord struct {
	ID         string     `json:"id"          db:"entity_id"`
	StatusCode int        `json:"status_code" db:"status_code"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	Attempts   int        `json:"attempts"    db:"attempts"`
	RunID      string     `json:"run_id"      db:"run_id"`
	FailedAt   time.Time  `json:"failed_at"   db:"failed_at"`
}

// Line renders the record in ledger form: "id,statusCode".
func (r FailureRecord) Line() string {
	return r.ID + "," + strconv.Itoa(r.StatusCode)
}
