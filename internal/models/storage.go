package models

import "time"

// UserRecord is a generic document record for user domain data (holdings,
// watchlist items). Value holds the JSON-encoded domain object.
type UserRecord struct {
	UserID   string    `json:"user_id"`
	Subject  string    `json:"subject"`
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}

// Record subjects.
const (
	SubjectHolding   = "holding"
	SubjectWatchlist = "watchlist"
)
