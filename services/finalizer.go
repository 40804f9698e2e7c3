package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/models"
)

// Finalizer exchanges a fully-accepted pending match for session credentials
// and promotes it to active. A token-service failure cancels the match and
// requeues the still-connected participants instead of stranding them.
type Finalizer struct {
	Pending  *PendingMatchService
	Active   *ActiveMatchService
	Tokens   *TokenClient
	Registry *Registry
	Notifier Notifier
	Logger   zerolog.Logger
}

// Finalize runs the FINALIZING leg of the match state machine. The expiry
// timer is stopped up front so it cannot fire mid-call; a reject or
// disconnect racing the token request still wins, in which case the record
// is gone afterwards and activation is skipped.
func (f *Finalizer) Finalize(ctx context.Context, pending models.PendingMatch) error {
	matchID := pending.Match.ID
	f.Logger.Info().Str("matchId", matchID).Msg("finalizing match")
	f.Pending.Timers.Cancel(matchID)

	tokens, err := f.Tokens.FetchTokens(ctx, matchID, pending.Match.ParticipantUsernames)
	if err != nil {
		f.Logger.Error().Err(err).Str("matchId", matchID).Msg("token service call failed")
		if cancelErr := f.Pending.Cancel(ctx, matchID, models.ReasonSetupFailed); cancelErr != nil {
			f.Logger.Error().Err(cancelErr).Str("matchId", matchID).Msg("failed to cancel after token failure")
		}
		return fmt.Errorf("finalize %s: %w", matchID, err)
	}

	// Re-check the record: if a concurrent cancellation removed it while
	// the token call was in flight, the match is already torn down.
	unlock := f.Pending.lock(matchID)
	if _, err := f.Pending.Get(ctx, matchID); err != nil {
		unlock()
		if errors.Is(err, ErrMatchNotFound) {
			f.Logger.Warn().Str("matchId", matchID).Msg("match cancelled during finalize")
			return nil
		}
		return err
	}
	if err := f.Pending.Store.HDel(ctx, models.PendingMatchesTable, matchID); err != nil {
		unlock()
		return fmt.Errorf("failed to remove pending match %s: %w", matchID, err)
	}
	unlock()

	// The active record must exist before the pending flags drop, or a
	// join_queue racing this window would pass both membership guards.
	if err := f.Active.Put(ctx, pending.Match); err != nil {
		f.Logger.Error().Err(err).Str("matchId", matchID).Msg("failed to record active match")
	}
	f.Registry.ClearPending(pending.Match.Participants...)

	for i, userID := range pending.Match.Participants {
		username := pending.Match.ParticipantUsernames[i]
		payload := models.MatchReadyPayload{
			MatchID:   matchID,
			Opponents: pending.Match.OpponentsOf(username),
			LKToken:   tokens[username],
		}
		if err := f.Notifier.Notify(userID, models.EventMatchReady, payload); err != nil {
			f.Logger.Warn().Err(err).Str("matchId", matchID).Str("userId", userID).
				Msg("failed to deliver match_ready")
		}
	}

	f.Logger.Info().Str("matchId", matchID).Msg("match finalized successfully")
	return nil
}
