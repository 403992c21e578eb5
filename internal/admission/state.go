package admission

// State is how far a request has progressed through admission.
// States only ever move forward.
type State int

const (
	StateReceived State = iota
	StateRateChecked
	StateOriginChecked
	StateValidated
	StateDispatched
	StateResponded
)

var stateNames = [...]string{
	StateReceived:      "received",
	StateRateChecked:   "rate_checked",
	StateOriginChecked: "origin_checked",
	StateValidated:     "validated",
	StateDispatched:    "dispatched",
	StateResponded:     "responded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
