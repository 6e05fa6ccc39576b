package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/statemachine"
	"quizClashClient/internal/types/friendship"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	failWith      error
	sendID        uuid.UUID
	respondResult *friendship.Friendship

	// beforeReturn runs inside each backend call, before it returns. Used to
	// simulate a refresh completing while a mutation is in flight.
	beforeReturn func()
}

func (f *fakeBackend) record(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	failWith := f.failWith
	f.mu.Unlock()

	if f.beforeReturn != nil {
		f.beforeReturn()
	}
	return failWith
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) SendFriendRequest(ctx context.Context, target uuid.UUID) (uuid.UUID, error) {
	if err := f.record("send"); err != nil {
		return uuid.Nil, err
	}
	if f.sendID == uuid.Nil {
		f.sendID = uuid.New()
	}
	return f.sendID, nil
}

func (f *fakeBackend) RespondToFriendRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error) {
	if err := f.record("respond"); err != nil {
		return nil, err
	}
	return f.respondResult, nil
}

func (f *fakeBackend) CancelFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	return f.record("cancel")
}

func (f *fakeBackend) Unfriend(ctx context.Context, friendUserID uuid.UUID) error {
	return f.record("unfriend")
}

var (
	viewer = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	other  = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	third  = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func pendingFrom(requester, addressee uuid.UUID) *friendship.Friendship {
	return &friendship.Friendship{
		ID:          uuid.New(),
		RequesterID: requester,
		AddresseeID: addressee,
		Status:      friendship.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func acceptedBetween(requester, addressee uuid.UUID) *friendship.Friendship {
	now := time.Now().UTC()
	f := pendingFrom(requester, addressee)
	f.Status = friendship.FriendshipAccepted
	f.AcceptedAt = &now
	return f
}

// at most one active friendship per unordered pair, checked over the whole
// cache contents
func assertPairInvariant(t *testing.T, c *RelationshipCache) {
	t.Helper()
	seen := make(map[[2]string]int)
	for _, f := range c.All() {
		if !f.Status.Active() {
			continue
		}
		a, b := f.RequesterID.String(), f.AddresseeID.String()
		if a > b {
			a, b = b, a
		}
		seen[[2]string{a, b}]++
	}
	for pair, n := range seen {
		assert.LessOrEqual(t, n, 1, "pair %v has %d active friendships", pair, n)
	}
}

func TestSendRequestCommitsWithBackendID(t *testing.T) {
	remoteID := uuid.New()
	fake := &fakeBackend{sendID: remoteID}
	c := NewRelationshipCache(viewer, fake)

	f, err := c.SendRequest(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, remoteID, f.ID)
	assert.Equal(t, friendship.FriendshipPending, f.Status)

	cached, ok := c.Get(remoteID)
	require.True(t, ok)
	assert.Equal(t, viewer, cached.RequesterID)
	assert.Equal(t, other, cached.AddresseeID)

	outgoing := c.PendingOutgoing()
	require.Len(t, outgoing, 1)
	assert.Equal(t, other, outgoing[0].OtherUserID)
	assert.Empty(t, c.PendingIncoming())
	assertPairInvariant(t, c)
}

func TestSendRequestRollsBackOnNetworkFailure(t *testing.T) {
	fake := &fakeBackend{failWith: &backend.NetworkError{Op: "send", Err: errors.New("timeout")}}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{acceptedBetween(viewer, third)})

	before := c.All()

	_, err := c.SendRequest(context.Background(), other)
	var netErr *backend.NetworkError
	require.ErrorAs(t, err, &netErr)

	assert.Equal(t, before, c.All(), "rollback must restore the exact pre-mutation state")
}

func TestSelfRequestRejectedWithoutBackendCall(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)

	_, err := c.SendRequest(context.Background(), viewer)
	var invalid *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, fake.callCount())
}

func TestDuplicateRequestRejectedWithoutBackendCall(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{pendingFrom(viewer, other)})

	_, err := c.SendRequest(context.Background(), other)
	var invalid *statemachine.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, fake.callCount())

	// Same guard once the pair is already friends.
	c.Replace([]*friendship.Friendship{acceptedBetween(other, viewer)})
	_, err = c.SendRequest(context.Background(), other)
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, fake.callCount())
}

func TestRespondAccept(t *testing.T) {
	incoming := pendingFrom(other, viewer)
	accepted := clone(incoming)
	accepted.Status = friendship.FriendshipAccepted
	now := time.Now().UTC()
	accepted.AcceptedAt = &now

	fake := &fakeBackend{respondResult: accepted}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	f, err := c.Respond(context.Background(), incoming.ID, true)
	require.NoError(t, err)
	assert.Equal(t, friendship.FriendshipAccepted, f.Status)
	require.NotNil(t, f.AcceptedAt)

	friends := c.Friends()
	require.Len(t, friends, 1)
	assert.Empty(t, c.PendingIncoming())
	assertPairInvariant(t, c)
}

func TestRespondDecline(t *testing.T) {
	incoming := pendingFrom(other, viewer)
	declined := clone(incoming)
	declined.Status = friendship.FriendshipDeclined

	fake := &fakeBackend{respondResult: declined}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	f, err := c.Respond(context.Background(), incoming.ID, false)
	require.NoError(t, err)
	assert.Equal(t, friendship.FriendshipDeclined, f.Status)
	assert.Empty(t, c.Friends())
	assert.Empty(t, c.PendingIncoming())
}

func TestRespondByRequesterNotAuthorized(t *testing.T) {
	outgoing := pendingFrom(viewer, other)
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{outgoing})

	_, err := c.Respond(context.Background(), outgoing.ID, true)
	var notAuthorized *statemachine.NotAuthorizedError
	require.ErrorAs(t, err, &notAuthorized)
	assert.Zero(t, fake.callCount())
}

func TestRespondUnknownRequestIsStale(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)

	_, err := c.Respond(context.Background(), uuid.New(), true)
	var stale *statemachine.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Zero(t, fake.callCount())
}

func TestRespondRollsBackOnBackendFailure(t *testing.T) {
	incoming := pendingFrom(other, viewer)
	fake := &fakeBackend{failWith: &backend.NetworkError{Op: "respond", Err: errors.New("connection reset")}}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	before := c.All()

	_, err := c.Respond(context.Background(), incoming.ID, true)
	require.Error(t, err)

	assert.Equal(t, before, c.All())
	require.Len(t, c.PendingIncoming(), 1, "the request is still pending after rollback")
}

func TestCancelByAddresseeNotAuthorized(t *testing.T) {
	incoming := pendingFrom(other, viewer)
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	err := c.Cancel(context.Background(), incoming.ID)
	var notAuthorized *statemachine.NotAuthorizedError
	require.ErrorAs(t, err, &notAuthorized)
	assert.Zero(t, fake.callCount())
}

func TestCancelOutgoingRequest(t *testing.T) {
	outgoing := pendingFrom(viewer, other)
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{outgoing})

	require.NoError(t, c.Cancel(context.Background(), outgoing.ID))
	assert.Empty(t, c.PendingOutgoing())

	state, _ := c.StatusWith(other)
	assert.Equal(t, statemachine.StateNone, state, "cancelled pair is free to start over")
}

func TestUnfriend(t *testing.T) {
	f := acceptedBetween(other, viewer)
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{f})

	require.NoError(t, c.Unfriend(context.Background(), other))
	assert.Empty(t, c.Friends())

	state, _ := c.StatusWith(other)
	assert.Equal(t, statemachine.StateNone, state)
}

func TestUnfriendWithoutFriendshipIsStale(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)

	err := c.Unfriend(context.Background(), other)
	var stale *statemachine.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Zero(t, fake.callCount())
}

func TestUnfriendRollsBackOnBackendFailure(t *testing.T) {
	f := acceptedBetween(viewer, other)
	fake := &fakeBackend{failWith: &backend.APIError{Code: backend.CodeNotFound, Message: "no such friendship"}}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{f})

	before := c.All()

	err := c.Unfriend(context.Background(), other)
	var stale *statemachine.StaleStateError
	require.ErrorAs(t, err, &stale, "backend not_found means the local view was stale")

	assert.Equal(t, before, c.All())
	require.Len(t, c.Friends(), 1)
}

func TestBackendWrongStateMapsToStaleState(t *testing.T) {
	incoming := pendingFrom(other, viewer)
	fake := &fakeBackend{failWith: &backend.APIError{Code: backend.CodeWrongState, Message: "request already handled"}}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	_, err := c.Respond(context.Background(), incoming.ID, true)
	var stale *statemachine.StaleStateError
	require.ErrorAs(t, err, &stale)
	require.Len(t, c.PendingIncoming(), 1, "optimistic accept was rolled back")
}

func TestDeclinedPairCanRequestAgain(t *testing.T) {
	declined := pendingFrom(other, viewer)
	declined.Status = friendship.FriendshipDeclined

	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{declined})

	f, err := c.SendRequest(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, friendship.FriendshipPending, f.Status)
	assertPairInvariant(t, c)
}

func TestRefreshDuringInFlightMutationWins(t *testing.T) {
	incoming := pendingFrom(other, viewer)

	authoritative := clone(incoming)
	authoritative.Status = friendship.FriendshipAccepted
	now := time.Now().UTC()
	authoritative.AcceptedAt = &now

	fake := &fakeBackend{failWith: &backend.NetworkError{Op: "respond", Err: errors.New("timeout")}}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{incoming})

	// While the accept is in flight, a refresh lands with the authoritative
	// answer (the backend did process the accept, we just lost the reply).
	fake.beforeReturn = func() {
		c.Replace([]*friendship.Friendship{authoritative})
	}

	_, err := c.Respond(context.Background(), incoming.ID, true)
	require.Error(t, err)

	// The rollback must not clobber the fresher authoritative state.
	cached, ok := c.Get(incoming.ID)
	require.True(t, ok)
	assert.Equal(t, friendship.FriendshipAccepted, cached.Status)
}

func TestStatsReflectCurrentState(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)
	c.Replace([]*friendship.Friendship{
		acceptedBetween(viewer, other),
		pendingFrom(third, viewer),
		pendingFrom(viewer, uuid.New()),
	})

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalFriends)
	assert.Equal(t, 1, stats.PendingIncoming)
	assert.Equal(t, 1, stats.PendingOutgoing)
}

func TestMutationSequencePreservesPairInvariant(t *testing.T) {
	fake := &fakeBackend{}
	c := NewRelationshipCache(viewer, fake)

	ctx := context.Background()

	f, err := c.SendRequest(ctx, other)
	require.NoError(t, err)
	assertPairInvariant(t, c)

	require.NoError(t, c.Cancel(ctx, f.ID))
	assertPairInvariant(t, c)

	fake.sendID = uuid.New()
	_, err = c.SendRequest(ctx, other)
	require.NoError(t, err)
	assertPairInvariant(t, c)

	// A refresh marking the pair accepted, then unfriending, then a fresh
	// request: the invariant holds at every step.
	c.Replace([]*friendship.Friendship{acceptedBetween(viewer, other)})
	assertPairInvariant(t, c)

	require.NoError(t, c.Unfriend(ctx, other))
	assertPairInvariant(t, c)

	fake.sendID = uuid.New()
	_, err = c.SendRequest(ctx, other)
	require.NoError(t, err)
	assertPairInvariant(t, c)
}
