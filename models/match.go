package models

import "time"

// MatchData describes a proposed or active pairing. Records are keyed by ID
// in the pendingMatches and activeMatches tables.
type MatchData struct {
	ID                   string    `json:"id"`
	Participants         []string  `json:"participants"`
	ParticipantUsernames []string  `json:"participantUsernames"`
	Topic                string    `json:"topic"`
	Format               string    `json:"format"`
	CreatedAt            time.Time `json:"createdAt"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

// HasParticipant reports whether userID is one of the match participants.
func (m MatchData) HasParticipant(userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// HasUsername reports whether username belongs to one of the participants.
func (m MatchData) HasUsername(username string) bool {
	for _, name := range m.ParticipantUsernames {
		if name == username {
			return true
		}
	}
	return false
}

// OpponentsOf returns the participant usernames other than username.
func (m MatchData) OpponentsOf(username string) []string {
	opponents := make([]string, 0, len(m.ParticipantUsernames))
	for _, name := range m.ParticipantUsernames {
		if name != username {
			opponents = append(opponents, name)
		}
	}
	return opponents
}

// PendingMatch is a proposed match awaiting acceptance from every
// participant. QueuedUsers keeps the original queue records so a cancelled
// participant can be requeued with their original enqueue time.
type PendingMatch struct {
	Match       MatchData    `json:"match"`
	AcceptedBy  []string     `json:"acceptedBy"`
	RejectedBy  []string     `json:"rejectedBy"`
	QueuedUsers []QueuedUser `json:"queuedUsers"`
}

// HasAccepted reports whether userID already accepted this match.
func (p PendingMatch) HasAccepted(userID string) bool {
	for _, id := range p.AcceptedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// HasRejected reports whether userID rejected this match.
func (p PendingMatch) HasRejected(userID string) bool {
	for _, id := range p.RejectedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// AllAccepted reports whether every participant has accepted.
func (p PendingMatch) AllAccepted() bool {
	for _, id := range p.Match.Participants {
		if !p.HasAccepted(id) {
			return false
		}
	}
	return true
}
