// Package sandbox runs untrusted plugin JavaScript inside an embedded goja
// runtime whose global environment is limited to a small set of host bindings.
//
// Every file, network and environment access made through those bindings is
// checked against a permissions.Manager. Execution is bounded by a wall-clock
// timeout and by the caller's context. The sandbox isolates bindings only; it
// does not limit CPU or memory.
package sandbox
