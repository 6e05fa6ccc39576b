package cache

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"quizClashClient/internal/backend"
	"quizClashClient/internal/statemachine"
	"quizClashClient/internal/types/friendship"
)

var (
	mutationsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_mutations_applied_total",
			Help: "Optimistic mutations applied to the relationship cache",
		},
		[]string{"op"},
	)
	mutationsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_mutations_committed_total",
			Help: "Optimistic mutations confirmed by the backend",
		},
		[]string{"op"},
	)
	mutationsRolledBack = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_mutations_rolled_back_total",
			Help: "Optimistic mutations rolled back after backend failure",
		},
		[]string{"op"},
	)
)

// InitMetrics registers the cache metrics. Call this from main.go
func InitMetrics() {
	prometheus.MustRegister(mutationsApplied)
	prometheus.MustRegister(mutationsCommitted)
	prometheus.MustRegister(mutationsRolledBack)
}

// MutationBackend is the slice of the backend contract the cache needs to
// confirm its optimistic mutations.
type MutationBackend interface {
	SendFriendRequest(ctx context.Context, targetUserID uuid.UUID) (uuid.UUID, error)
	RespondToFriendRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error)
	CancelFriendRequest(ctx context.Context, requestID uuid.UUID) error
	Unfriend(ctx context.Context, friendUserID uuid.UUID) error
}

// RelationshipCache keeps the client's view of the friendship graph for one
// viewer. Mutations are validated against the current local state, applied
// optimistically under the lock, then confirmed or rolled back on the
// backend's answer. Readers only ever observe the pre-mutation state or the
// fully applied one, never a partial mixture.
type RelationshipCache struct {
	mu      sync.RWMutex
	viewer  uuid.UUID
	backend MutationBackend
	entries map[uuid.UUID]*friendship.Friendship

	// gen is bumped whenever Replace installs authoritative state. A
	// rollback whose snapshot predates the current generation is dropped so
	// the fresher authoritative state wins.
	gen uint64
}

func NewRelationshipCache(viewer uuid.UUID, backend MutationBackend) *RelationshipCache {
	return &RelationshipCache{
		viewer:  viewer,
		backend: backend,
		entries: make(map[uuid.UUID]*friendship.Friendship),
	}
}

func (c *RelationshipCache) Viewer() uuid.UUID { return c.viewer }

// snapshot records the pre-mutation value of every touched entry. A nil
// value means the entry did not exist.
type snapshot struct {
	gen     uint64
	touched map[uuid.UUID]*friendship.Friendship
}

func (c *RelationshipCache) snapshotLocked(ids ...uuid.UUID) *snapshot {
	snap := &snapshot{gen: c.gen, touched: make(map[uuid.UUID]*friendship.Friendship, len(ids))}
	for _, id := range ids {
		if e, ok := c.entries[id]; ok {
			snap.touched[id] = clone(e)
		} else {
			snap.touched[id] = nil
		}
	}
	return snap
}

func (c *RelationshipCache) rollback(op string, snap *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != snap.gen {
		// A refresh installed newer authoritative state while the mutation
		// was in flight; restoring the old snapshot would clobber it.
		log.Printf("RelationshipCache: skipping %s rollback, authoritative state is newer", op)
		return
	}
	for id, prev := range snap.touched {
		if prev == nil {
			delete(c.entries, id)
		} else {
			c.entries[id] = clone(prev)
		}
	}
	mutationsRolledBack.WithLabelValues(op).Inc()
}

func clone(f *friendship.Friendship) *friendship.Friendship {
	cp := *f
	if f.AcceptedAt != nil {
		t := *f.AcceptedAt
		cp.AcceptedAt = &t
	}
	return &cp
}

// activeWithLocked returns the active friendship between the viewer and
// other, if any. Ended records are ignored: the pair is free to start over.
func (c *RelationshipCache) activeWithLocked(other uuid.UUID) *friendship.Friendship {
	for _, e := range c.entries {
		if e.Status.Active() && e.Involves(c.viewer) && e.Involves(other) {
			return e
		}
	}
	return nil
}

func stateOf(f *friendship.Friendship) statemachine.State {
	if f == nil {
		return statemachine.StateNone
	}
	switch f.Status {
	case friendship.FriendshipPending:
		return statemachine.StatePending
	case friendship.FriendshipAccepted:
		return statemachine.StateFriends
	default:
		return statemachine.StateEnded
	}
}

func (c *RelationshipCache) roleFor(f *friendship.Friendship) (statemachine.Role, bool) {
	switch c.viewer {
	case f.RequesterID:
		return statemachine.RoleRequester, true
	case f.AddresseeID:
		return statemachine.RoleAddressee, true
	}
	return "", false
}

// SendRequest creates a pending friendship from the viewer to target,
// optimistically, and confirms it with the backend. The returned friendship
// carries the backend-assigned ID.
func (c *RelationshipCache) SendRequest(ctx context.Context, target uuid.UUID) (*friendship.Friendship, error) {
	c.mu.Lock()
	if target == c.viewer {
		c.mu.Unlock()
		return nil, &statemachine.InvalidTransitionError{
			State:  statemachine.StateNone,
			Action: statemachine.ActionSendRequest,
			Reason: "cannot send a friend request to yourself",
		}
	}

	current := stateOf(c.activeWithLocked(target))
	if _, err := statemachine.ValidateTransition(current, statemachine.ActionSendRequest, statemachine.RoleRequester); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	provisional := &friendship.Friendship{
		ID:          uuid.New(),
		RequesterID: c.viewer,
		AddresseeID: target,
		Status:      friendship.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
	}
	snap := c.snapshotLocked(provisional.ID)
	c.entries[provisional.ID] = provisional
	mutationsApplied.WithLabelValues("send_request").Inc()
	c.mu.Unlock()

	remoteID, err := c.backend.SendFriendRequest(ctx, target)
	if err != nil {
		c.rollback("send_request", snap)
		return nil, translate(statemachine.ActionSendRequest, statemachine.StatePending, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	confirmed := clone(provisional)
	confirmed.ID = remoteID
	if c.gen == snap.gen {
		delete(c.entries, provisional.ID)
		c.entries[remoteID] = clone(confirmed)
	}
	mutationsCommitted.WithLabelValues("send_request").Inc()
	return confirmed, nil
}

// Respond accepts or declines a pending request addressed to the viewer.
func (c *RelationshipCache) Respond(ctx context.Context, requestID uuid.UUID, accept bool) (*friendship.Friendship, error) {
	action := statemachine.ActionDecline
	if accept {
		action = statemachine.ActionAccept
	}

	c.mu.Lock()
	e, ok := c.entries[requestID]
	if !ok {
		c.mu.Unlock()
		return nil, &statemachine.StaleStateError{Action: action, Expected: statemachine.StatePending, Got: statemachine.StateNone}
	}
	role, isParticipant := c.roleFor(e)
	if !isParticipant {
		c.mu.Unlock()
		return nil, &statemachine.NotAuthorizedError{Action: action, Role: statemachine.RoleAddressee}
	}
	if _, err := statemachine.ValidateTransition(stateOf(e), action, role); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	snap := c.snapshotLocked(requestID)
	if accept {
		now := time.Now().UTC()
		e.Status = friendship.FriendshipAccepted
		e.AcceptedAt = &now
	} else {
		e.Status = friendship.FriendshipDeclined
	}
	optimistic := clone(e)
	mutationsApplied.WithLabelValues(string(action)).Inc()
	c.mu.Unlock()

	remote, err := c.backend.RespondToFriendRequest(ctx, requestID, accept)
	if err != nil {
		c.rollback(string(action), snap)
		return nil, translate(action, statemachine.StatePending, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == snap.gen && remote != nil {
		// Adopt the authoritative record (server timestamps win).
		c.entries[requestID] = clone(remote)
	}
	mutationsCommitted.WithLabelValues(string(action)).Inc()
	if cur, ok := c.entries[requestID]; ok {
		return clone(cur), nil
	}
	return optimistic, nil
}

// Cancel withdraws a pending request the viewer sent.
func (c *RelationshipCache) Cancel(ctx context.Context, requestID uuid.UUID) error {
	c.mu.Lock()
	e, ok := c.entries[requestID]
	if !ok {
		c.mu.Unlock()
		return &statemachine.StaleStateError{Action: statemachine.ActionCancel, Expected: statemachine.StatePending, Got: statemachine.StateNone}
	}
	role, isParticipant := c.roleFor(e)
	if !isParticipant {
		c.mu.Unlock()
		return &statemachine.NotAuthorizedError{Action: statemachine.ActionCancel, Role: statemachine.RoleRequester}
	}
	if _, err := statemachine.ValidateTransition(stateOf(e), statemachine.ActionCancel, role); err != nil {
		c.mu.Unlock()
		return err
	}

	snap := c.snapshotLocked(requestID)
	e.Status = friendship.FriendshipCancelled
	mutationsApplied.WithLabelValues("cancel").Inc()
	c.mu.Unlock()

	if err := c.backend.CancelFriendRequest(ctx, requestID); err != nil {
		c.rollback("cancel", snap)
		return translate(statemachine.ActionCancel, statemachine.StatePending, err)
	}

	mutationsCommitted.WithLabelValues("cancel").Inc()
	return nil
}

// Unfriend ends the accepted friendship between the viewer and friendUserID.
func (c *RelationshipCache) Unfriend(ctx context.Context, friendUserID uuid.UUID) error {
	c.mu.Lock()
	e := c.activeWithLocked(friendUserID)
	if e == nil || e.Status != friendship.FriendshipAccepted {
		got := stateOf(e)
		c.mu.Unlock()
		return &statemachine.StaleStateError{Action: statemachine.ActionUnfriend, Expected: statemachine.StateFriends, Got: got}
	}
	role, isParticipant := c.roleFor(e)
	if !isParticipant {
		c.mu.Unlock()
		return &statemachine.NotAuthorizedError{Action: statemachine.ActionUnfriend, Role: statemachine.RoleRequester}
	}
	if _, err := statemachine.ValidateTransition(stateOf(e), statemachine.ActionUnfriend, role); err != nil {
		c.mu.Unlock()
		return err
	}

	snap := c.snapshotLocked(e.ID)
	e.Status = friendship.FriendshipRemoved
	mutationsApplied.WithLabelValues("unfriend").Inc()
	c.mu.Unlock()

	if err := c.backend.Unfriend(ctx, friendUserID); err != nil {
		c.rollback("unfriend", snap)
		return translate(statemachine.ActionUnfriend, statemachine.StateFriends, err)
	}

	mutationsCommitted.WithLabelValues("unfriend").Inc()
	return nil
}

// translate maps backend rejections onto the local error taxonomy. Domain
// rejections mean the local cache was stale; network failures pass through
// untouched so callers know the outcome is unknown.
func translate(action statemachine.Action, expected statemachine.State, err error) error {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case backend.CodeWrongState, backend.CodeNotFound:
		return &statemachine.StaleStateError{Action: action, Expected: expected, Got: statemachine.StateNone}
	case backend.CodeAlreadyFriends:
		return &statemachine.StaleStateError{Action: action, Expected: statemachine.StateNone, Got: statemachine.StateFriends}
	case backend.CodeAlreadyPending:
		return &statemachine.StaleStateError{Action: action, Expected: statemachine.StateNone, Got: statemachine.StatePending}
	case backend.CodeNotAuthorized:
		return &statemachine.NotAuthorizedError{Action: action, Role: statemachine.RoleRequester}
	case backend.CodeSelfRequest:
		return &statemachine.InvalidTransitionError{State: statemachine.StateNone, Action: action, Reason: apiErr.Message}
	default:
		return err
	}
}

// Replace installs authoritative relationship state from a backend refresh
// and invalidates the undo bookkeeping of any mutation still in flight.
func (c *RelationshipCache) Replace(records []*friendship.Friendship) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uuid.UUID]*friendship.Friendship, len(records))
	for _, f := range records {
		c.entries[f.ID] = clone(f)
	}
	c.gen++
}

// Get returns a copy of the friendship with the given ID.
func (c *RelationshipCache) Get(id uuid.UUID) (*friendship.Friendship, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return clone(e), true
}

// All returns a copy of every cached record, ordered by ID for determinism.
func (c *RelationshipCache) All() []*friendship.Friendship {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*friendship.Friendship, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Friends returns the viewer's accepted friendships.
func (c *RelationshipCache) Friends() []*friendship.Friendship {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*friendship.Friendship
	for _, e := range c.entries {
		if e.Status == friendship.FriendshipAccepted && e.Involves(c.viewer) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// PendingIncoming projects pending requests addressed to the viewer.
func (c *RelationshipCache) PendingIncoming() []*friendship.FriendRequest {
	return c.pending(friendship.RequestIncoming)
}

// PendingOutgoing projects pending requests the viewer sent.
func (c *RelationshipCache) PendingOutgoing() []*friendship.FriendRequest {
	return c.pending(friendship.RequestOutgoing)
}

func (c *RelationshipCache) pending(direction friendship.RequestDirection) []*friendship.FriendRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*friendship.FriendRequest
	for _, e := range c.entries {
		if e.Status != friendship.FriendshipPending {
			continue
		}
		var match bool
		if direction == friendship.RequestIncoming {
			match = e.AddresseeID == c.viewer
		} else {
			match = e.RequesterID == c.viewer
		}
		if !match {
			continue
		}
		out = append(out, &friendship.FriendRequest{
			FriendshipID: e.ID,
			OtherUserID:  e.OtherParticipant(c.viewer),
			Direction:    direction,
			CreatedAt:    e.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendshipID.String() < out[j].FriendshipID.String() })
	return out
}

// Stats derives friendship counters from the cached records.
func (c *RelationshipCache) Stats() friendship.FriendshipStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats friendship.FriendshipStats
	for _, e := range c.entries {
		switch {
		case e.Status == friendship.FriendshipAccepted && e.Involves(c.viewer):
			stats.TotalFriends++
		case e.Status == friendship.FriendshipPending && e.AddresseeID == c.viewer:
			stats.PendingIncoming++
		case e.Status == friendship.FriendshipPending && e.RequesterID == c.viewer:
			stats.PendingOutgoing++
		}
	}
	return stats
}

// StatusWith reports the pair state between the viewer and other and, when
// an active friendship exists, its ID.
func (c *RelationshipCache) StatusWith(other uuid.UUID) (statemachine.State, uuid.UUID) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.activeWithLocked(other)
	if e == nil {
		return statemachine.StateNone, uuid.Nil
	}
	return stateOf(e), e.ID
}
