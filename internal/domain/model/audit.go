package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records one request and the response it produced.
type AuditEntry struct {
	ID       int64           `json:"id"       db:"id"`
	TS       time.Time       `json:"ts"       db:"ts"`
	Route    string          `json:"route"    db:"route"`
	Payload  json.RawMessage `json:"payload"  db:"payload"`
	Response json.RawMessage `json:"response" db:"response"`
}
