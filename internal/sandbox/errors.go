package sandbox

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// ModuleDeniedError is thrown when plugin code requires a module outside the allowlist.
type ModuleDeniedError struct {
	Name string
}

func (e *ModuleDeniedError) Error() string {
	return fmt.Sprintf("Access to module '%s' is denied.", e.Name)
}

func (e *ModuleDeniedError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryPermission
}

// TimeoutError reports that a script ran past the configured wall-clock limit.
type TimeoutError struct {
	Filename string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sandbox: %s exceeded execution timeout of %s", e.Filename, e.Timeout)
}

func (e *TimeoutError) ErrorCategory() errors.ErrorCategory {
	return errors.CategorySandbox
}
