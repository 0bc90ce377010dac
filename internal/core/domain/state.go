package domain

// InstanceState tracks a deployed instance from the caller's side.
// The adapter never moves an instance on its own.
type InstanceState string

const (
	StateAbsent    InstanceState = "absent"
	StateDeploying InstanceState = "deploying"
	StateRunning   InstanceState = "running"
	StateStopped   InstanceState = "stopped"
	StateDestroyed InstanceState = "destroyed"
)

// Operation is a caller-driven lifecycle intent.
type Operation string

const (
	OpDeploy   Operation = "deploy"
	OpDeployed Operation = "deployed"
	OpStart    Operation = "start"
	OpStop     Operation = "stop"
	OpDestroy  Operation = "destroy"
)

var transitions = map[InstanceState]map[Operation]InstanceState{
	StateAbsent:    {OpDeploy: StateDeploying},
	StateDeploying: {OpDeployed: StateRunning, OpStart: StateRunning, OpStop: StateStopped, OpDestroy: StateDestroyed},
	StateRunning:   {OpStop: StateStopped, OpDestroy: StateDestroyed},
	StateStopped:   {OpStart: StateRunning, OpDestroy: StateDestroyed},
}

// Transition returns the state reached by applying op to from.
// Destroyed is terminal: its handle must not be reused.
func Transition(from InstanceState, op Operation) (InstanceState, error) {
	next, ok := transitions[from][op]
	if !ok {
		return from, &ConflictError{State: from, Op: op}
	}
	return next, nil
}

// StateFromLiveStatus maps an inventory live status back to an instance state.
func StateFromLiveStatus(status string) InstanceState {
	switch status {
	case LiveStatusOnline:
		return StateRunning
	case LiveStatusOffline:
		return StateStopped
	default:
		return StateDeploying
	}
}
