package permissions

import (
	"fmt"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// Kind names a resource class.
type Kind string

const (
	KindRead    Kind = "Read"
	KindWrite   Kind = "Write"
	KindNetwork Kind = "Network"
	KindEnv     Kind = "Env"
)

// DeniedError reports a refused capability query. The message format
// "<Kind> access denied: <target>" is visible to plugin code.
type DeniedError struct {
	Kind   Kind
	Target string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s access denied: %s", e.Kind, e.Target)
}

// ErrorCategory classifies denials for the CLI error adapter.
func (e *DeniedError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryPermission
}
