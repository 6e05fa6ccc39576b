package statemachine

import "fmt"

// State is the lifecycle position of a friendship between one pair of users.
// A pair with no record, or only declined/cancelled/removed records, is in
// StateNone and may start a fresh request cycle.
type State string

const (
	StateNone    State = "none"
	StatePending State = "pending"
	StateFriends State = "friends"
	StateEnded   State = "ended"
)

type Action string

const (
	ActionSendRequest Action = "send_request"
	ActionAccept      Action = "accept"
	ActionDecline     Action = "decline"
	ActionCancel      Action = "cancel"
	ActionUnfriend    Action = "unfriend"
)

// Role is the actor's position relative to the friendship record: the
// requester sent the original request, the addressee received it.
type Role string

const (
	RoleRequester Role = "requester"
	RoleAddressee Role = "addressee"
)

// InvalidTransitionError marks a locally detected illegal state change.
// No backend call is made for these.
type InvalidTransitionError struct {
	State  State
	Action Action
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s in state %s: %s", e.Action, e.State, e.Reason)
}

// NotAuthorizedError marks an action attempted by a participant that is not
// the legal actor for it (e.g. the requester accepting their own request).
type NotAuthorizedError struct {
	Action Action
	Role   Role
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("not authorized: %s cannot %s", e.Role, e.Action)
}

// StaleStateError signals that an action's expected prior state does not
// match the current state, typically because the transition was already
// applied elsewhere. Callers should refresh and retry rather than assume
// success.
type StaleStateError struct {
	Action   Action
	Expected State
	Got      State
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state: %s expects state %s, found %s", e.Action, e.Expected, e.Got)
}

// transition rows keyed by action: the required prior state, the roles
// allowed to perform the action, and the resulting state.
var transitions = map[Action]struct {
	from  State
	roles []Role
	to    State
}{
	ActionSendRequest: {from: StateNone, roles: []Role{RoleRequester}, to: StatePending},
	ActionAccept:      {from: StatePending, roles: []Role{RoleAddressee}, to: StateFriends},
	ActionDecline:     {from: StatePending, roles: []Role{RoleAddressee}, to: StateEnded},
	ActionCancel:      {from: StatePending, roles: []Role{RoleRequester}, to: StateEnded},
	ActionUnfriend:    {from: StateFriends, roles: []Role{RoleRequester, RoleAddressee}, to: StateEnded},
}

// ValidateTransition is the single exhaustive transition function for the
// friendship lifecycle. It is pure: it either returns the next state or an
// error describing why the requested transition is illegal.
func ValidateTransition(current State, action Action, actor Role) (State, error) {
	t, ok := transitions[action]
	if !ok {
		return current, &InvalidTransitionError{State: current, Action: action, Reason: "unknown action"}
	}

	// A fresh request cycle is legal once the previous friendship ended.
	if action == ActionSendRequest && current == StateEnded {
		current = StateNone
	}

	if current != t.from {
		if action == ActionSendRequest {
			// Sending into an already-active friendship is a plain illegal
			// request, not a staleness problem the caller can retry past.
			return current, &InvalidTransitionError{State: current, Action: action, Reason: "an active friendship already exists"}
		}
		return current, &StaleStateError{Action: action, Expected: t.from, Got: current}
	}

	for _, r := range t.roles {
		if r == actor {
			return t.to, nil
		}
	}
	return current, &NotAuthorizedError{Action: action, Role: actor}
}
