package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootdrew27/DISCO/models"
)

// pendingFixture queues alice and bob and lets the engine propose their
// match, returning its id.
func pendingFixture(t *testing.T, ms *MatchmakingService, alice, bob *fakeClient) string {
	t.Helper()
	ctx := context.Background()
	prefs := models.MatchPreferences{Format: models.FormatCasual, Topic: "cats"}
	require.NoError(t, ms.HandleJoinQueue(ctx, alice, prefs))
	require.NoError(t, ms.HandleJoinQueue(ctx, bob, prefs))

	found := alice.received(models.EventMatchFound)
	require.Len(t, found, 1, "alice should have received match_found")
	match, ok := found[0].(models.MatchData)
	require.True(t, ok)
	require.Len(t, bob.received(models.EventMatchFound), 1)
	return match.ID
}

func TestPendingMatch_CreateRemovesFromQueue(t *testing.T) {
	ctx := context.Background()
	ms, registry := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")

	matchID := pendingFixture(t, ms, alice, bob)

	// Both participants moved from the queue into the pending match.
	size, err := ms.Queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
	assert.True(t, registry.IsPending("alice"))
	assert.True(t, registry.IsPending("bob"))

	pending, err := ms.Pending.Get(ctx, matchID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, pending.Match.Participants)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, pending.Match.ParticipantUsernames)
	assert.Equal(t, "cats", pending.Match.Topic)
	assert.Equal(t, models.FormatCasual, pending.Match.Format)
	assert.Empty(t, pending.AcceptedBy)
	assert.Empty(t, pending.RejectedBy)
}

func TestPendingMatch_AcceptBookkeeping(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")
	matchID := pendingFixture(t, ms, alice, bob)

	pending, all, err := ms.Pending.Accept(ctx, matchID, "alice")
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, []string{"alice"}, pending.AcceptedBy)

	// Accepting twice does not duplicate the entry.
	pending, all, err = ms.Pending.Accept(ctx, matchID, "alice")
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, []string{"alice"}, pending.AcceptedBy)

	pending, all, err = ms.Pending.Accept(ctx, matchID, "bob")
	require.NoError(t, err)
	assert.True(t, all)

	// acceptedBy stays a subset of the participants.
	for _, id := range pending.AcceptedBy {
		assert.True(t, pending.Match.HasParticipant(id))
	}

	// Finalization is signalled only on the completing accept; a repeat
	// arriving before the record is removed must not signal it again.
	_, all, err = ms.Pending.Accept(ctx, matchID, "bob")
	require.NoError(t, err)
	assert.False(t, all)
}

func TestPendingMatch_AcceptErrors(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")
	matchID := pendingFixture(t, ms, alice, bob)

	_, _, err := ms.Pending.Accept(ctx, "no-such-match", "alice")
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, _, err = ms.Pending.Accept(ctx, matchID, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)

	// Errors leave the record untouched.
	pending, err := ms.Pending.Get(ctx, matchID)
	require.NoError(t, err)
	assert.Empty(t, pending.AcceptedBy)
}

func TestPendingMatch_RejectCancelsAndRequeuesOnlyTheOther(t *testing.T) {
	ctx := context.Background()
	ms, registry := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")
	matchID := pendingFixture(t, ms, alice, bob)

	require.NoError(t, ms.Pending.Reject(ctx, matchID, "bob"))

	assert.Equal(t, []interface{}{models.ReasonRejected}, alice.received(models.EventMatchCancelled))
	assert.Equal(t, []interface{}{models.ReasonRejected}, bob.received(models.EventMatchCancelled))

	// The record is gone and both pending flags cleared.
	_, err := ms.Pending.Get(ctx, matchID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.False(t, registry.IsPending("alice"))
	assert.False(t, registry.IsPending("bob"))

	// Alice is requeued, the rejecter is not.
	snapshot, err := ms.Queue.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "alice", snapshot[0].UserID)
}

func TestPendingMatch_RequeuePreservesJoinedAt(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")

	prefs := models.MatchPreferences{Format: models.FormatCasual, Topic: "cats"}
	require.NoError(t, ms.HandleJoinQueue(ctx, alice, prefs))
	before, err := ms.Queue.Snapshot(ctx)
	require.NoError(t, err)
	aliceJoined := before[0].JoinedAt

	require.NoError(t, ms.HandleJoinQueue(ctx, bob, prefs))
	found := alice.received(models.EventMatchFound)
	require.Len(t, found, 1)
	matchID := found[0].(models.MatchData).ID

	require.NoError(t, ms.Pending.Reject(ctx, matchID, "bob"))

	after, err := ms.Queue.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].JoinedAt.Equal(aliceJoined), "requeue must keep the original enqueue time")
}

func TestPendingMatch_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")
	matchID := pendingFixture(t, ms, alice, bob)

	require.NoError(t, ms.Pending.Cancel(ctx, matchID, models.ReasonExpired))
	require.NoError(t, ms.Pending.Cancel(ctx, matchID, models.ReasonExpired))
	require.NoError(t, ms.Pending.Cancel(ctx, matchID, models.ReasonDisconnected))

	// Exactly one notification per participant despite repeated cancels.
	assert.Equal(t, 1, alice.receivedCount(models.EventMatchCancelled))
	assert.Equal(t, 1, bob.receivedCount(models.EventMatchCancelled))
}

func TestPendingMatch_ExpiryCancelsAndRequeuesBoth(t *testing.T) {
	ctx := context.Background()
	ms, registry := newTestService(t, fakeTokenServer(t, 0).URL, 30*time.Millisecond)
	alice := connect(ms, "alice", "Alice")
	bob := connect(ms, "bob", "Bob")
	pendingFixture(t, ms, alice, bob)

	// Detach the pairing pass that would otherwise immediately re-propose
	// the same pair, so the post-expiry state stays observable.
	ms.Pending.OnChange = nil

	require.Eventually(t, func() bool {
		return alice.receivedCount(models.EventMatchCancelled) == 1 &&
			bob.receivedCount(models.EventMatchCancelled) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []interface{}{models.ReasonExpired}, alice.received(models.EventMatchCancelled))

	// Neither accepted nor rejected: both come back to the queue.
	size, err := ms.Queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	assert.False(t, registry.IsPending("alice"))
	assert.False(t, registry.IsPending("bob"))
}

func TestPendingMatch_CreateRequiresLiveConnections(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestService(t, fakeTokenServer(t, 0).URL, time.Minute)

	ghost := models.QueuedUser{
		UserID:   "ghost",
		Username: "Ghost",
		Preferences: models.MatchPreferences{
			Format: models.FormatCasual,
			Topic:  "cats",
		},
		JoinedAt: time.Now().UTC(),
	}
	alice := connect(ms, "alice", "Alice")
	require.NoError(t, ms.Queue.Enqueue(ctx, ghost))
	aliceUser := ghost
	aliceUser.UserID = alice.UserID()
	aliceUser.Username = alice.Username()
	require.NoError(t, ms.Queue.Enqueue(ctx, aliceUser))

	err := ms.Pending.Create(ctx, ghost, aliceUser)
	assert.ErrorIs(t, err, ErrNotConnected)

	// Both stay queued for a future pass.
	size, err := ms.Queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}
