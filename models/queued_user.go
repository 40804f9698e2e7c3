package models

import "time"

// MatchPreferences is what a user asks for when joining the queue. Two users
// are compatible when Format and Topic are both equal; MaxWaitTime and
// ExpertiseLevel are carried but not matched on.
type MatchPreferences struct {
	Format         string `json:"format"`
	Topic          string `json:"topic"`
	MaxWaitTime    int    `json:"maxWaitTime,omitempty"`
	ExpertiseLevel int    `json:"expertiseLevel,omitempty"`
}

// QueuedUser is the queue record, keyed by UserID in the queue table.
type QueuedUser struct {
	UserID      string           `json:"userId"`
	Username    string           `json:"username"`
	Preferences MatchPreferences `json:"preferences"`
	JoinedAt    time.Time        `json:"joinedAt"`
}

// CompatibleWith reports whether two queued users can be paired.
func (u QueuedUser) CompatibleWith(other QueuedUser) bool {
	return u.Preferences.Format == other.Preferences.Format &&
		u.Preferences.Topic == other.Preferences.Topic
}
