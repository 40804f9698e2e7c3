package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/models"
)

// MatchEngine scans the queue for disjoint compatible pairs. Invocations are
// serialized by a mutex; membership is additionally re-validated at
// pending-match creation time through the registry's atomic pair claim, so a
// pass that raced a queue mutation can never double-book a user.
type MatchEngine struct {
	Queue    *QueueService
	Pending  *PendingMatchService
	Registry *Registry
	Logger   zerolog.Logger

	mu sync.Mutex
}

// AttemptMatching runs one pairing pass over the current queue snapshot.
// It must be called after every queue mutation: joins, leaves, and
// cancellation-driven requeues.
func (e *MatchEngine) AttemptMatching(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.Queue.Snapshot(ctx)
	if err != nil {
		e.Logger.Error().Err(err).Msg("failed to snapshot queue")
		return
	}

	available := snapshot[:0:0]
	for _, user := range snapshot {
		if !e.Registry.IsPending(user.UserID) {
			available = append(available, user)
		}
	}
	e.Logger.Debug().Int("available", len(available)).Msg("users available for matching")
	if len(available) < 2 {
		return
	}

	pairs := findPairs(available)
	if len(pairs) > 0 {
		e.Logger.Info().Int("pairs", len(pairs)).Msg("found potential matches")
	}
	for _, pair := range pairs {
		if err := e.Pending.Create(ctx, pair[0], pair[1]); err != nil && !errors.Is(err, ErrNotConnected) {
			e.Logger.Error().Err(err).Msg("failed to create pending match")
		}
	}
}

// findPairs is a greedy first-fit over users in insertion order: each
// not-yet-used user is paired with the earliest later compatible user.
// Deterministic for a fixed snapshot, O(n^2) worst case.
func findPairs(users []models.QueuedUser) [][2]models.QueuedUser {
	var pairs [][2]models.QueuedUser
	used := make(map[string]bool, len(users))

	for i := 0; i < len(users)-1; i++ {
		if used[users[i].UserID] {
			continue
		}
		for j := i + 1; j < len(users); j++ {
			if used[users[j].UserID] {
				continue
			}
			if users[i].CompatibleWith(users[j]) {
				pairs = append(pairs, [2]models.QueuedUser{users[i], users[j]})
				used[users[i].UserID] = true
				used[users[j].UserID] = true
				break
			}
		}
	}
	return pairs
}
