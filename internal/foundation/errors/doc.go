// Package errors holds the classified errors shared by every nextgen package.
//
// Errors are built fluently and carry a category plus structured fields:
//
//	err := errors.ConfigError("No entry points found").
//		WithContext("root", cfg.Root).
//		Build()
//
// Domain errors that already know their category implement Categorizer
// instead. CLIErrorAdapter maps either kind onto a message and exit code.
package errors
