package warehouse

import (
	"fmt"
	"strings"
)

// SchemaError reports a target table missing expected columns. Fatal;
// raised before any mutation.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s is missing expected columns: %s",
		e.Table, strings.Join(e.Missing, ", "))
}

// CoercionError reports a candidate key that cannot be represented as
// the staging integer key. Row-level: the row is excluded and counted,
// the run continues.
type CoercionError struct {
	ID  string
	Err error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce key %q to integer: %v", e.ID, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }
