package models

// Inbound events (client to server).
const (
	EventJoinQueue   = "join_queue"
	EventLeaveQueue  = "leave_queue"
	EventAcceptMatch = "accept_match"
	EventRejectMatch = "reject_match"
)

// Outbound events (server to client).
const (
	EventQueued         = "queued"
	EventAlreadyQueued  = "already_queued"
	EventQueueUpdate    = "queue_update"
	EventMatchFound     = "match_found"
	EventMatchReady     = "match_ready"
	EventMatchCancelled = "match_cancelled"
	EventError          = "error"
)

// QueuedPayload acknowledges a successful join_queue.
type QueuedPayload struct {
	Position int `json:"position"`
}

// QueueUpdatePayload is broadcast to every connection after a queue mutation.
type QueueUpdatePayload struct {
	QueueSize int `json:"queueSize"`
}

// MatchReadyPayload is sent to each participant once a match is finalized.
// LKToken is that participant's own session credential.
type MatchReadyPayload struct {
	MatchID   string   `json:"matchId"`
	Opponents []string `json:"opponents"`
	LKToken   string   `json:"lkToken"`
}

// AcceptMatchPayload and RejectMatchPayload carry the match id of the
// pending match being answered.
type AcceptMatchPayload struct {
	MatchID string `json:"matchId"`
}

type RejectMatchPayload struct {
	MatchID string `json:"matchId"`
}
