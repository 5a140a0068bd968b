package geo

import (
	"fmt"
	"strings"
)

// LoadError reports an unreadable, malformed, or unusable polygon
// reference source. It is fatal; nothing has been mutated when it occurs.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("polygon reference %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("polygon reference %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError reports that none of the accepted region-name attributes
// exist in the polygon source. Available lists the attribute names that
// were actually present, for diagnosis.
type SchemaError struct {
	Path       string
	Candidates []string
	Available  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("polygon reference %s: no region name attribute found (tried %s; available: %s)",
		e.Path, strings.Join(e.Candidates, ", "), strings.Join(e.Available, ", "))
}
