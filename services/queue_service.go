package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rootdrew27/DISCO/models"
)

// ErrAlreadyQueued is returned by Enqueue when the user already has a queue
// record.
var ErrAlreadyQueued = errors.New("user already queued")

// QueueService owns the durable set of users waiting to be matched, keyed by
// user id in the queue table.
type QueueService struct {
	Store KVStore
}

// Enqueue inserts the user's queue record. The insert is conditional on the
// key being absent, so two concurrent joins from the same identity cannot
// produce two records.
func (qs *QueueService) Enqueue(ctx context.Context, user models.QueuedUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal queued user: %w", err)
	}
	err = qs.Store.HSetNX(ctx, models.QueueTable, user.UserID, data)
	if errors.Is(err, ErrKeyExists) {
		return ErrAlreadyQueued
	}
	return err
}

// Dequeue removes the user's queue record. Removing an absent user is a
// no-op.
func (qs *QueueService) Dequeue(ctx context.Context, userID string) error {
	return qs.Store.HDel(ctx, models.QueueTable, userID)
}

// Size returns the number of queued users.
func (qs *QueueService) Size(ctx context.Context) (int, error) {
	return qs.Store.HLen(ctx, models.QueueTable)
}

// Snapshot returns all queued users in insertion order (by enqueue time,
// user id as tie-break), which keeps pairing deterministic and fair.
func (qs *QueueService) Snapshot(ctx context.Context) ([]models.QueuedUser, error) {
	records, err := qs.Store.HGetAll(ctx, models.QueueTable)
	if err != nil {
		return nil, err
	}
	users := make([]models.QueuedUser, 0, len(records))
	for key, data := range records {
		var user models.QueuedUser
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("corrupt queue record for %s: %w", key, err)
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].UserID < users[j].UserID
		}
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
	return users, nil
}
