package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rootdrew27/DISCO/models"
)

// ActiveMatchService owns finalized matches. Records are written by the
// finalizer, read by the role lookup the UI layer uses to distinguish
// participants from viewers, and removed when the external session-ended
// signal arrives.
type ActiveMatchService struct {
	Store KVStore
}

// Put records a finalized match.
func (as *ActiveMatchService) Put(ctx context.Context, match models.MatchData) error {
	data, err := json.Marshal(match)
	if err != nil {
		return fmt.Errorf("failed to marshal active match: %w", err)
	}
	return as.Store.HSet(ctx, models.ActiveMatchesTable, match.ID, data)
}

// Get returns the active match for matchID, or ErrMatchNotFound.
func (as *ActiveMatchService) Get(ctx context.Context, matchID string) (models.MatchData, error) {
	data, err := as.Store.HGet(ctx, models.ActiveMatchesTable, matchID)
	if errors.Is(err, ErrKeyNotFound) {
		return models.MatchData{}, ErrMatchNotFound
	}
	if err != nil {
		return models.MatchData{}, err
	}
	var match models.MatchData
	if err := json.Unmarshal(data, &match); err != nil {
		return models.MatchData{}, fmt.Errorf("corrupt active match %s: %w", matchID, err)
	}
	return match, nil
}

// List returns every active match.
func (as *ActiveMatchService) List(ctx context.Context) ([]models.MatchData, error) {
	records, err := as.Store.HGetAll(ctx, models.ActiveMatchesTable)
	if err != nil {
		return nil, err
	}
	matches := make([]models.MatchData, 0, len(records))
	for matchID, data := range records {
		var match models.MatchData
		if err := json.Unmarshal(data, &match); err != nil {
			return nil, fmt.Errorf("corrupt active match %s: %w", matchID, err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Remove deletes the active match record. Used when the session backing the
// match has ended.
func (as *ActiveMatchService) Remove(ctx context.Context, matchID string) error {
	return as.Store.HDel(ctx, models.ActiveMatchesTable, matchID)
}

// Role reports whether username is a recognized participant of the active
// match: participants are discussors, anyone else is a viewer.
// ErrMatchNotFound is returned when no such active match exists.
func (as *ActiveMatchService) Role(ctx context.Context, matchID, username string) (string, error) {
	match, err := as.Get(ctx, matchID)
	if err != nil {
		return "", err
	}
	if match.HasUsername(username) {
		return models.RoleDiscussor, nil
	}
	return models.RoleViewer, nil
}

// HasParticipant reports whether userID belongs to any active match.
func (as *ActiveMatchService) HasParticipant(ctx context.Context, userID string) (bool, error) {
	matches, err := as.List(ctx)
	if err != nil {
		return false, err
	}
	for _, match := range matches {
		if match.HasParticipant(userID) {
			return true, nil
		}
	}
	return false, nil
}
