package syncagent

// State describes the agent's view of the remote.
type State string

// Agent states.
const (
	StateUninitialized State = State("uninitialized")
	StateInitializing  State = State("initializing")
	StateReachable     State = State("reachable")
	StateUnreachable   State = State("unreachable")
)
