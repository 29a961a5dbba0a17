package router

// State captures where a question is in its answer cycle. Transitions are
// linear: received -> planning -> invoking -> composing -> done, with failed
// reachable from any non-terminal state. Invoking is skipped when the
// decision consults no adapter.
type State string

const (
	StateReceived  State = "received"
	StatePlanning  State = "planning"
	StateInvoking  State = "invoking"
	StateComposing State = "composing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends the answer cycle.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Reason classifies why a question failed. Empty on done answers.
type Reason string

const (
	// ReasonNone marks a successful answer.
	ReasonNone Reason = ""
	// ReasonInvalidQuery: the planned SQL was rejected by validation, and
	// the single corrective retry did not produce an accepted query.
	ReasonInvalidQuery Reason = "invalid_query"
	// ReasonExecutionError: the store rejected a validated query, and the
	// corrective retry did not recover.
	ReasonExecutionError Reason = "execution_error"
	// ReasonIndexUnavailable: the passage index could not be reached.
	ReasonIndexUnavailable Reason = "index_unavailable"
	// ReasonTimeout: a stage or the whole question exceeded its bound.
	ReasonTimeout Reason = "timeout"
	// ReasonPlanningFailure: the model produced no usable decision.
	ReasonPlanningFailure Reason = "planning_failure"
	// ReasonFailed: no adapter produced usable evidence and no fallback
	// applied, or composing itself failed.
	ReasonFailed Reason = "failed"
)
