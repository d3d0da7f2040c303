package session

// State is a session's position in the ad lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateEmpty      State = "empty"
	StateError      State = "error"
	StateReady      State = "ready"
	StatePresenting State = "presenting"
	StateCompleted  State = "completed"
	StateDismissed  State = "dismissed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateError, StateCompleted, StateDismissed, StateFailed:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// Action is the user or host action that resolves a presentation.
// ActionWatched is the only action that completes a rewarded ad; ActionRemoved
// is used when the host takes a banner down.
type Action string

const (
	ActionWatched  Action = "watched"
	ActionContinue Action = "continue"
	ActionDismiss  Action = "dismiss"
	ActionRemoved  Action = "removed"
)

// ParseAction converts a wire value into an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionWatched, ActionContinue, ActionDismiss, ActionRemoved:
		return a, true
	}
	return "", false
}
