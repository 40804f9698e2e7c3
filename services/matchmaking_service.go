package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/models"
)

// MatchmakingService is the orchestrator behind the connection protocol: it
// owns the queue, the pairing engine, the pending-match lifecycle, and the
// finalizer, and exposes one handler per inbound event. Events for a single
// user arrive in order from that user's connection read loop; shared state
// is guarded inside the individual components.
type MatchmakingService struct {
	Queue    *QueueService
	Engine   *MatchEngine
	Pending  *PendingMatchService
	Active   *ActiveMatchService
	Registry *Registry
	Notifier Notifier
	Finalize *Finalizer
	Logger   zerolog.Logger
}

func NewMatchmakingService(store KVStore, registry *Registry, notifier Notifier, tokens *TokenClient, expire time.Duration, logger zerolog.Logger) *MatchmakingService {
	queue := &QueueService{Store: store}
	active := &ActiveMatchService{Store: store}
	pending := NewPendingMatchService(store, queue, registry, notifier, expire, logger)
	engine := &MatchEngine{Queue: queue, Pending: pending, Registry: registry, Logger: logger}
	finalizer := &Finalizer{
		Pending:  pending,
		Active:   active,
		Tokens:   tokens,
		Registry: registry,
		Notifier: notifier,
		Logger:   logger,
	}
	ms := &MatchmakingService{
		Queue:    queue,
		Engine:   engine,
		Pending:  pending,
		Active:   active,
		Registry: registry,
		Notifier: notifier,
		Finalize: finalizer,
		Logger:   logger,
	}
	// Cancellations requeue survivors, so each one is a queue mutation.
	pending.OnChange = ms.onQueueChanged
	return ms
}

// HandleConnect registers the authenticated connection.
func (ms *MatchmakingService) HandleConnect(c Client) {
	ms.Registry.Register(c)
	ms.Logger.Info().Str("userId", c.UserID()).Msg("user connected")
}

// HandleJoinQueue enqueues the user and triggers a pairing pass. Joining
// while already queued, pending, or active is rejected with already_queued.
func (ms *MatchmakingService) HandleJoinQueue(ctx context.Context, c Client, prefs models.MatchPreferences) error {
	userID := c.UserID()
	ms.Logger.Info().Str("userId", userID).Msg("user attempting to join queue")

	if ms.Registry.IsPending(userID) {
		ms.Logger.Warn().Str("userId", userID).Msg("join rejected, user in pending match")
		return ms.Notifier.Notify(userID, models.EventAlreadyQueued, nil)
	}
	if active, err := ms.Active.HasParticipant(ctx, userID); err != nil {
		return err
	} else if active {
		ms.Logger.Warn().Str("userId", userID).Msg("join rejected, user in active match")
		return ms.Notifier.Notify(userID, models.EventAlreadyQueued, nil)
	}

	user := models.QueuedUser{
		UserID:      userID,
		Username:    c.Username(),
		Preferences: prefs,
		JoinedAt:    time.Now().UTC(),
	}
	if err := ms.Queue.Enqueue(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			ms.Logger.Warn().Str("userId", userID).Msg("user already in queue")
			return ms.Notifier.Notify(userID, models.EventAlreadyQueued, nil)
		}
		return err
	}

	position, err := ms.Queue.Size(ctx)
	if err != nil {
		return err
	}
	if err := ms.Notifier.Notify(userID, models.EventQueued, models.QueuedPayload{Position: position}); err != nil {
		ms.Logger.Warn().Err(err).Str("userId", userID).Msg("failed to deliver queued ack")
	}
	ms.Logger.Info().Str("userId", userID).
		Str("format", prefs.Format).Str("topic", prefs.Topic).
		Msg("user joined queue")

	ms.onQueueChanged(ctx)
	return nil
}

// HandleLeaveQueue removes the user from the queue. Leaving while part of a
// pending match cancels that match, with the leaver excluded from requeue.
func (ms *MatchmakingService) HandleLeaveQueue(ctx context.Context, c Client) error {
	userID := c.UserID()
	ms.Logger.Info().Str("userId", userID).Msg("user leaving queue")

	if err := ms.Queue.Dequeue(ctx, userID); err != nil {
		return err
	}
	if err := ms.cancelPendingFor(ctx, userID, models.ReasonLeftQueue); err != nil {
		return err
	}
	ms.onQueueChanged(ctx)
	return nil
}

// HandleAcceptMatch records the acceptance and finalizes once both
// participants have accepted.
func (ms *MatchmakingService) HandleAcceptMatch(ctx context.Context, c Client, matchID string) error {
	userID := c.UserID()
	ms.Logger.Info().Str("userId", userID).Str("matchId", matchID).Msg("user accepting match")

	pending, allAccepted, err := ms.Pending.Accept(ctx, matchID, userID)
	if err != nil {
		return ms.replyProtocolError(userID, matchID, err)
	}
	if !allAccepted {
		return nil
	}
	if err := ms.Finalize.Finalize(ctx, pending); err != nil {
		return err
	}
	ms.broadcastQueueUpdate(ctx)
	return nil
}

// HandleRejectMatch records the rejection and cancels the match for both
// participants.
func (ms *MatchmakingService) HandleRejectMatch(ctx context.Context, c Client, matchID string) error {
	userID := c.UserID()
	ms.Logger.Info().Str("userId", userID).Str("matchId", matchID).Msg("user rejecting match")

	if err := ms.Pending.Reject(ctx, matchID, userID); err != nil {
		return ms.replyProtocolError(userID, matchID, err)
	}
	return nil
}

// HandleDisconnect tears down everything tied to the connection: the
// registry entry, the queue record, and any pending match containing the
// user. Active matches are unaffected.
func (ms *MatchmakingService) HandleDisconnect(ctx context.Context, c Client) {
	userID := c.UserID()
	if !ms.Registry.Unregister(c) {
		// A duplicate connection closed; the registered one is still
		// live, so the user's queue and match state stays intact.
		ms.Logger.Info().Str("userId", userID).Msg("duplicate connection closed")
		return
	}
	ms.Logger.Info().Str("userId", userID).Msg("user disconnected")

	if err := ms.Queue.Dequeue(ctx, userID); err != nil {
		ms.Logger.Error().Err(err).Str("userId", userID).Msg("failed to dequeue on disconnect")
	}
	if err := ms.cancelPendingFor(ctx, userID, models.ReasonDisconnected); err != nil {
		ms.Logger.Error().Err(err).Str("userId", userID).Msg("failed to cancel pending matches on disconnect")
	}
	ms.onQueueChanged(ctx)
}

// cancelPendingFor cancels every pending match containing userID, excluding
// that user from requeue.
func (ms *MatchmakingService) cancelPendingFor(ctx context.Context, userID, reason string) error {
	matchIDs, err := ms.Pending.FindByParticipant(ctx, userID)
	if err != nil {
		return err
	}
	for _, matchID := range matchIDs {
		if err := ms.Pending.Cancel(ctx, matchID, reason, userID); err != nil {
			ms.Logger.Error().Err(err).Str("matchId", matchID).Msg("cancellation failed")
		}
	}
	return nil
}

// replyProtocolError reports accept/reject misuse back to the caller as a
// non-fatal error event. No state was mutated.
func (ms *MatchmakingService) replyProtocolError(userID, matchID string, err error) error {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		ms.Logger.Warn().Str("userId", userID).Str("matchId", matchID).Msg("match not found")
		return ms.Notifier.Notify(userID, models.EventError, "Match not found")
	case errors.Is(err, ErrNotParticipant):
		ms.Logger.Warn().Str("userId", userID).Str("matchId", matchID).Msg("user not a participant")
		return ms.Notifier.Notify(userID, models.EventError, "Not a participant in this match")
	default:
		return err
	}
}

// onQueueChanged runs a pairing pass and then broadcasts the resulting
// queue size. The pass comes first so observers see the post-pairing size
// rather than one that still counts just-matched users.
func (ms *MatchmakingService) onQueueChanged(ctx context.Context) {
	ms.Engine.AttemptMatching(ctx)
	ms.broadcastQueueUpdate(ctx)
}

func (ms *MatchmakingService) broadcastQueueUpdate(ctx context.Context) {
	size, err := ms.Queue.Size(ctx)
	if err != nil {
		ms.Logger.Error().Err(err).Msg("failed to read queue size")
		return
	}
	ms.Notifier.Broadcast(models.EventQueueUpdate, models.QueueUpdatePayload{QueueSize: size})
}
