package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootdrew27/DISCO/models"
)

func prefUser(id, format, topic string, order int) models.QueuedUser {
	return models.QueuedUser{
		UserID:   id,
		Username: "name-" + id,
		Preferences: models.MatchPreferences{
			Format: format,
			Topic:  topic,
		},
		JoinedAt: time.Date(2025, 6, 1, 12, 0, 0, order, time.UTC),
	}
}

func TestFindPairs_Empty(t *testing.T) {
	assert.Empty(t, findPairs(nil))
	assert.Empty(t, findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
	}))
}

func TestFindPairs_CompatiblePair(t *testing.T) {
	pairs := findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatCasual, "cats", 1),
	})
	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0][0].UserID)
	assert.Equal(t, "b", pairs[0][1].UserID)
}

func TestFindPairs_RequiresFormatAndTopicEquality(t *testing.T) {
	// Same topic, different format.
	pairs := findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatFormal, "cats", 1),
	})
	assert.Empty(t, pairs)

	// Same format, different topic.
	pairs = findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatCasual, "dogs", 1),
	})
	assert.Empty(t, pairs)
}

func TestFindPairs_IncompatibleUserStaysBehind(t *testing.T) {
	pairs := findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("c", models.FormatFormal, "science", 1),
		prefUser("b", models.FormatCasual, "cats", 2),
	})
	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0][0].UserID)
	assert.Equal(t, "b", pairs[0][1].UserID)
}

func TestFindPairs_EarliestCompatiblePartnerWins(t *testing.T) {
	// Both b and c are compatible with a; b is closer in insertion order.
	pairs := findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatCasual, "cats", 1),
		prefUser("c", models.FormatCasual, "cats", 2),
	})
	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0][0].UserID)
	assert.Equal(t, "b", pairs[0][1].UserID)
}

func TestFindPairs_DisjointPairs(t *testing.T) {
	pairs := findPairs([]models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatFormal, "science", 1),
		prefUser("c", models.FormatCasual, "cats", 2),
		prefUser("d", models.FormatFormal, "science", 3),
	})
	require.Len(t, pairs, 2)

	seen := make(map[string]int)
	for _, pair := range pairs {
		seen[pair[0].UserID]++
		seen[pair[1].UserID]++
	}
	// No user appears in two pairs.
	for id, count := range seen {
		assert.Equal(t, 1, count, "user %s claimed %d times", id, count)
	}
}

func TestFindPairs_Deterministic(t *testing.T) {
	users := []models.QueuedUser{
		prefUser("a", models.FormatCasual, "cats", 0),
		prefUser("b", models.FormatCasual, "cats", 1),
		prefUser("c", models.FormatCasual, "cats", 2),
		prefUser("d", models.FormatCasual, "cats", 3),
	}
	first := findPairs(users)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, findPairs(users))
	}
}
