package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/models"
)

var (
	// ErrMatchNotFound is returned when a match id has no pending record.
	ErrMatchNotFound = errors.New("match not found")
	// ErrNotParticipant is returned when a user answers a match they are
	// not part of.
	ErrNotParticipant = errors.New("not a participant in this match")
)

const lockStripes = 64

// PendingMatchService owns proposed-but-unconfirmed matches: creation,
// accept/reject bookkeeping, expiry timers, and the single cancellation path
// every failure mode (reject, expiry, disconnect, leave, finalize failure)
// converges on.
type PendingMatchService struct {
	Store      KVStore
	Queue      *QueueService
	Registry   *Registry
	Notifier   Notifier
	Timers     *MatchTimers
	Logger     zerolog.Logger
	ExpireTime time.Duration

	// OnChange runs after a cancellation has requeued survivors, so the
	// orchestrator can broadcast the queue size and trigger a new pairing
	// pass.
	OnChange func(ctx context.Context)

	locks [lockStripes]sync.Mutex
}

func NewPendingMatchService(store KVStore, queue *QueueService, registry *Registry, notifier Notifier, expire time.Duration, logger zerolog.Logger) *PendingMatchService {
	s := &PendingMatchService{
		Store:      store,
		Queue:      queue,
		Registry:   registry,
		Notifier:   notifier,
		Timers:     NewMatchTimers(),
		Logger:     logger,
		ExpireTime: expire,
	}
	return s
}

// lock serializes read-modify-write cycles per match id so concurrent
// accepts or an accept racing a cancel never lose updates. Lock striping
// keeps unrelated matches from serializing against each other.
func (s *PendingMatchService) lock(matchID string) func() {
	h := fnv.New32a()
	h.Write([]byte(matchID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Create turns a compatible candidate pair into a pending match: claims both
// users' pending flags, removes them from the queue, persists the record,
// notifies both participants, and arms the expiry timer.
func (s *PendingMatchService) Create(ctx context.Context, userA, userB models.QueuedUser) error {
	// Both participants need live connections to receive the proposal. A
	// missing one is an operational error; the affected users stay queued
	// for a future pass.
	for _, u := range []models.QueuedUser{userA, userB} {
		if _, ok := s.Registry.Get(u.UserID); !ok {
			s.Logger.Error().Str("userId", u.UserID).Msg("no connection for queued user, skipping pair")
			return ErrNotConnected
		}
	}

	matchID := uuid.NewString()
	if !s.Registry.MarkPendingPair(matchID, userA.UserID, userB.UserID) {
		// A concurrent pass already claimed one of them.
		return nil
	}

	now := time.Now().UTC()
	pending := models.PendingMatch{
		Match: models.MatchData{
			ID:                   matchID,
			Participants:         []string{userA.UserID, userB.UserID},
			ParticipantUsernames: []string{userA.Username, userB.Username},
			Topic:                userA.Preferences.Topic,
			Format:               userA.Preferences.Format,
			CreatedAt:            now,
			ExpiresAt:            now.Add(s.ExpireTime),
		},
		AcceptedBy:  []string{},
		RejectedBy:  []string{},
		QueuedUsers: []models.QueuedUser{userA, userB},
	}

	data, err := json.Marshal(pending)
	if err != nil {
		s.Registry.ClearPending(userA.UserID, userB.UserID)
		return fmt.Errorf("failed to marshal pending match: %w", err)
	}
	if err := s.Store.HSet(ctx, models.PendingMatchesTable, matchID, data); err != nil {
		s.Registry.ClearPending(userA.UserID, userB.UserID)
		return fmt.Errorf("failed to persist pending match %s: %w", matchID, err)
	}

	// The pair now lives in pendingMatches only.
	for _, u := range pending.QueuedUsers {
		if err := s.Queue.Dequeue(ctx, u.UserID); err != nil {
			s.Logger.Error().Err(err).Str("userId", u.UserID).Msg("failed to remove matched user from queue")
		}
	}

	s.Logger.Info().Str("matchId", matchID).
		Strs("participants", pending.Match.Participants).
		Msg("created pending match")

	for _, id := range pending.Match.Participants {
		if err := s.Notifier.Notify(id, models.EventMatchFound, pending.Match); err != nil {
			s.Logger.Warn().Err(err).Str("matchId", matchID).Str("userId", id).
				Msg("failed to deliver match_found")
		}
	}

	s.Timers.Start(matchID, s.ExpireTime, func() {
		if err := s.Cancel(context.Background(), matchID, models.ReasonExpired); err != nil {
			s.Logger.Error().Err(err).Str("matchId", matchID).Msg("expiry cancellation failed")
		}
	})
	return nil
}

// Get returns the pending match record for matchID.
func (s *PendingMatchService) Get(ctx context.Context, matchID string) (models.PendingMatch, error) {
	data, err := s.Store.HGet(ctx, models.PendingMatchesTable, matchID)
	if errors.Is(err, ErrKeyNotFound) {
		return models.PendingMatch{}, ErrMatchNotFound
	}
	if err != nil {
		return models.PendingMatch{}, err
	}
	var pending models.PendingMatch
	if err := json.Unmarshal(data, &pending); err != nil {
		return models.PendingMatch{}, fmt.Errorf("corrupt pending match %s: %w", matchID, err)
	}
	return pending, nil
}

// Accept records userID's acceptance. The returned bool is true only when
// this call completed the acceptance set, so finalization is signalled
// exactly once; a duplicate accept arriving before the finalizer removes
// the record must not start a second finalization.
func (s *PendingMatchService) Accept(ctx context.Context, matchID, userID string) (models.PendingMatch, bool, error) {
	unlock := s.lock(matchID)
	defer unlock()

	pending, err := s.Get(ctx, matchID)
	if err != nil {
		return models.PendingMatch{}, false, err
	}
	if !pending.Match.HasParticipant(userID) {
		return models.PendingMatch{}, false, ErrNotParticipant
	}
	if pending.HasAccepted(userID) {
		return pending, false, nil
	}
	pending.AcceptedBy = append(pending.AcceptedBy, userID)
	data, err := json.Marshal(pending)
	if err != nil {
		return models.PendingMatch{}, false, fmt.Errorf("failed to marshal pending match: %w", err)
	}
	if err := s.Store.HSet(ctx, models.PendingMatchesTable, matchID, data); err != nil {
		return models.PendingMatch{}, false, err
	}
	return pending, pending.AllAccepted(), nil
}

// Reject records userID's rejection and cancels the match. The rejecter is
// not requeued; everyone else eligible is.
func (s *PendingMatchService) Reject(ctx context.Context, matchID, userID string) error {
	unlock := s.lock(matchID)
	pending, err := s.Get(ctx, matchID)
	if err != nil {
		unlock()
		return err
	}
	if !pending.Match.HasParticipant(userID) {
		unlock()
		return ErrNotParticipant
	}
	if !pending.HasRejected(userID) {
		pending.RejectedBy = append(pending.RejectedBy, userID)
		data, err := json.Marshal(pending)
		if err != nil {
			unlock()
			return fmt.Errorf("failed to marshal pending match: %w", err)
		}
		if err := s.Store.HSet(ctx, models.PendingMatchesTable, matchID, data); err != nil {
			unlock()
			return err
		}
	}
	unlock()
	return s.Cancel(ctx, matchID, models.ReasonRejected)
}

// Cancel tears down a pending match: removes the record, stops the expiry
// timer, clears the participants' pending flags, notifies both sides with
// the reason, and requeues every participant who is still connected, did not
// reject, and is not in exclude. Cancelling an already-absent match is a
// no-op, which makes the timer/cancel race harmless.
func (s *PendingMatchService) Cancel(ctx context.Context, matchID, reason string, exclude ...string) error {
	unlock := s.lock(matchID)
	pending, err := s.Get(ctx, matchID)
	if errors.Is(err, ErrMatchNotFound) {
		unlock()
		return nil
	}
	if err != nil {
		unlock()
		return err
	}
	if err := s.Store.HDel(ctx, models.PendingMatchesTable, matchID); err != nil {
		unlock()
		return err
	}
	unlock()

	s.Timers.Cancel(matchID)
	s.Registry.ClearPending(pending.Match.Participants...)
	s.Logger.Info().Str("matchId", matchID).Str("reason", reason).Msg("cancelled pending match")

	for _, id := range pending.Match.Participants {
		if err := s.Notifier.Notify(id, models.EventMatchCancelled, reason); err != nil {
			s.Logger.Debug().Err(err).Str("matchId", matchID).Str("userId", id).
				Msg("could not deliver match_cancelled")
		}
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	for _, user := range pending.QueuedUsers {
		if excluded[user.UserID] || pending.HasRejected(user.UserID) {
			continue
		}
		if _, ok := s.Registry.Get(user.UserID); !ok {
			continue
		}
		// Original enqueue time is preserved so survivors keep their place.
		if err := s.Queue.Enqueue(ctx, user); err != nil && !errors.Is(err, ErrAlreadyQueued) {
			s.Logger.Error().Err(err).Str("userId", user.UserID).Msg("failed to requeue user")
		}
	}

	if s.OnChange != nil {
		s.OnChange(ctx)
	}
	return nil
}

// FindByParticipant returns the ids of pending matches that contain userID.
func (s *PendingMatchService) FindByParticipant(ctx context.Context, userID string) ([]string, error) {
	records, err := s.Store.HGetAll(ctx, models.PendingMatchesTable)
	if err != nil {
		return nil, err
	}
	var matchIDs []string
	for matchID, data := range records {
		var pending models.PendingMatch
		if err := json.Unmarshal(data, &pending); err != nil {
			s.Logger.Error().Err(err).Str("matchId", matchID).Msg("corrupt pending match record")
			continue
		}
		if pending.Match.HasParticipant(userID) {
			matchIDs = append(matchIDs, matchID)
		}
	}
	return matchIDs, nil
}
