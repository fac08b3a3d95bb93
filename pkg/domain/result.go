package domain

// CommandResult collects business-rule failures for commands that either
// apply fully or not at all.
type CommandResult struct {
	ErrorMessages []string
}

// Success returns true when no errors were recorded.
func (r CommandResult) Success() bool {
	return len(r.ErrorMessages) == 0
}

// HasErrors returns true when at least one error was recorded.
func (r CommandResult) HasErrors() bool {
	return !r.Success()
}

// NewCommandResult builds a result from error messages.
func NewCommandResult(messages ...string) CommandResult {
	return CommandResult{ErrorMessages: messages}
}

// ItemResult is the outcome for one input of a bulk operation. Err is nil on
// success, a SoftFailure when the item succeeded with a skipped side effect,
// or the business error that rejected the item.
type ItemResult[T any] struct {
	Item T
	Err  error
}

// Succeeded returns true when the item was applied.
func (r ItemResult[T]) Succeeded() bool {
	return r.Err == nil || IsSoftFailure(r.Err)
}

// Successes returns the items that were applied.
func Successes[T any](results []ItemResult[T]) []T {
	var out []T
	for _, r := range results {
		if r.Succeeded() {
			out = append(out, r.Item)
		}
	}
	return out
}

// Failures returns the results that were rejected.
func Failures[T any](results []ItemResult[T]) []ItemResult[T] {
	var out []ItemResult[T]
	for _, r := range results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}
