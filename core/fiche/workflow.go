package fiche

import "fmt"

// The transition table. Anything not listed here is an invalid edge.
//
//	draft ----> pending ----> validated
//	              ^  `------> rejected
//	              `--------------'
//
// validated is hard-terminal for the normal flow; rejected may re-enter
// pending after edits.
var transitions = map[transition]struct{}{
	{StatusDraft, StatusPending}:     {},
	{StatusPending, StatusValidated}: {},
	{StatusPending, StatusRejected}:  {},
	{StatusRejected, StatusPending}:  {},
}

type transition struct {
	From Status
	To   Status
}

// CanTransition reports whether the workflow permits the from -> to edge.
func CanTransition(from, to Status) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// InvalidTransitionError signals an attempted status edge the workflow does
// not permit, naming the edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid fiche transition: %s -> %s", e.From, e.To)
}

// ValidationFailedError signals an attempted validation without engine
// approval. It carries the ValidationResult for display.
type ValidationFailedError struct {
	Result ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("fiche validation failed: score %d, failing rules: %v", e.Result.Score, e.Result.FailingRules())
}
