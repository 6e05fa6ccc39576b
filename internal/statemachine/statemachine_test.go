package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTransitions(t *testing.T) {
	cases := []struct {
		name   string
		state  State
		action Action
		actor  Role
		want   State
	}{
		{"send from none", StateNone, ActionSendRequest, RoleRequester, StatePending},
		{"send after ended", StateEnded, ActionSendRequest, RoleRequester, StatePending},
		{"addressee accepts", StatePending, ActionAccept, RoleAddressee, StateFriends},
		{"addressee declines", StatePending, ActionDecline, RoleAddressee, StateEnded},
		{"requester cancels", StatePending, ActionCancel, RoleRequester, StateEnded},
		{"requester unfriends", StateFriends, ActionUnfriend, RoleRequester, StateEnded},
		{"addressee unfriends", StateFriends, ActionUnfriend, RoleAddressee, StateEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := ValidateTransition(tc.state, tc.action, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestUnauthorizedActors(t *testing.T) {
	cases := []struct {
		name   string
		state  State
		action Action
		actor  Role
	}{
		{"requester accepts own request", StatePending, ActionAccept, RoleRequester},
		{"requester declines own request", StatePending, ActionDecline, RoleRequester},
		{"addressee cancels", StatePending, ActionCancel, RoleAddressee},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := ValidateTransition(tc.state, tc.action, tc.actor)
			var notAuthorized *NotAuthorizedError
			require.ErrorAs(t, err, &notAuthorized)
			assert.Equal(t, tc.state, next, "failed transition must not change state")
		})
	}
}

func TestSendIntoActiveFriendship(t *testing.T) {
	for _, state := range []State{StatePending, StateFriends} {
		next, err := ValidateTransition(state, ActionSendRequest, RoleRequester)
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "send in state %s", state)
		assert.Equal(t, state, next)
	}
}

func TestStaleStateDetection(t *testing.T) {
	cases := []struct {
		name   string
		state  State
		action Action
		actor  Role
	}{
		{"accept already accepted", StateFriends, ActionAccept, RoleAddressee},
		{"accept already ended", StateEnded, ActionAccept, RoleAddressee},
		{"decline from none", StateNone, ActionDecline, RoleAddressee},
		{"cancel already ended", StateEnded, ActionCancel, RoleRequester},
		{"unfriend while pending", StatePending, ActionUnfriend, RoleRequester},
		{"unfriend from none", StateNone, ActionUnfriend, RoleAddressee},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := ValidateTransition(tc.state, tc.action, tc.actor)
			var stale *StaleStateError
			require.ErrorAs(t, err, &stale)
			assert.Equal(t, tc.state, next)
		})
	}
}

// Every (state, action, role) triple either yields the transition table's
// next state or exactly one error from the taxonomy; no triple silently
// succeeds outside the table.
func TestFullProductIsCovered(t *testing.T) {
	states := []State{StateNone, StatePending, StateFriends, StateEnded}
	actions := []Action{ActionSendRequest, ActionAccept, ActionDecline, ActionCancel, ActionUnfriend}
	roles := []Role{RoleRequester, RoleAddressee}

	allowed := map[[3]string]State{
		{string(StateNone), string(ActionSendRequest), string(RoleRequester)}:  StatePending,
		{string(StateEnded), string(ActionSendRequest), string(RoleRequester)}: StatePending,
		{string(StatePending), string(ActionAccept), string(RoleAddressee)}:    StateFriends,
		{string(StatePending), string(ActionDecline), string(RoleAddressee)}:   StateEnded,
		{string(StatePending), string(ActionCancel), string(RoleRequester)}:    StateEnded,
		{string(StateFriends), string(ActionUnfriend), string(RoleRequester)}:  StateEnded,
		{string(StateFriends), string(ActionUnfriend), string(RoleAddressee)}:  StateEnded,
	}

	for _, s := range states {
		for _, a := range actions {
			for _, r := range roles {
				next, err := ValidateTransition(s, a, r)
				key := [3]string{string(s), string(a), string(r)}

				if want, ok := allowed[key]; ok {
					require.NoError(t, err, "triple (%s,%s,%s)", s, a, r)
					assert.Equal(t, want, next)
					continue
				}

				require.Error(t, err, "triple (%s,%s,%s) must be rejected", s, a, r)

				var invalid *InvalidTransitionError
				var stale *StaleStateError
				var notAuthorized *NotAuthorizedError
				isTyped := errors.As(err, &invalid) || errors.As(err, &stale) || errors.As(err, &notAuthorized)
				assert.True(t, isTyped, "error for (%s,%s,%s) must come from the taxonomy, got %v", s, a, r, err)
			}
		}
	}
}
