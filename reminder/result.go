package reminder

import (
	"fmt"

	"git.0xdad.com/tblyler/medreminder/apperr"
)

// ItemError is a soft failure for a single schedule or dose log. It never
// aborts the pass it occurred in.
type ItemError struct {
	Kind   apperr.Kind
	Entity string
	Err    error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Entity, e.Err)
}

// RunResult of a single pass
type RunResult struct {
	Pass string
	// Matched is the number of due schedules or pending logs found
	Matched      int
	LogsCreated  int
	Transitioned int
	Notified     int
	// Skipped items were already processed by an earlier or concurrent pass
	Skipped int
	Errors  []ItemError
}

func (r *RunResult) addError(entity string, err error) {
	r.Errors = append(r.Errors, ItemError{
		Kind:   apperr.KindOf(err),
		Entity: entity,
		Err:    err,
	})
}

// ErrorCount by kind
func (r RunResult) ErrorCount(kind apperr.Kind) int {
	count := 0
	for _, itemErr := range r.Errors {
		if itemErr.Kind == kind {
			count++
		}
	}

	return count
}
