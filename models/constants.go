package models

// Discussion formats a user can queue for.
const (
	FormatCasual = "casual"
	FormatFormal = "formal"
	FormatPanel  = "panel"
)

// Logical hash tables in the shared store.
const (
	QueueTable          = "queue"
	PendingMatchesTable = "pendingMatches"
	ActiveMatchesTable  = "activeMatches"
)

// Cancellation reasons delivered with match_cancelled events.
const (
	ReasonRejected     = "User rejected match"
	ReasonExpired      = "Match expired"
	ReasonDisconnected = "User disconnected"
	ReasonLeftQueue    = "User left the queue"
	ReasonSetupFailed  = "Match setup failed"
)

// Roles reported by the active-match role lookup.
const (
	RoleDiscussor = "discussor"
	RoleViewer    = "viewer"
)
