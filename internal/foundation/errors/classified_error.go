package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is an error with a category, optional cause and fields.
type ClassifiedError struct {
	category  ErrorCategory
	message   string
	cause     error
	fields    Fields
	retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.category, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory { return e.category }

func (e *ClassifiedError) Message() string { return e.message }

func (e *ClassifiedError) Cause() error { return e.cause }

// Fields returns the error's structured context. Callers must not modify it.
func (e *ClassifiedError) Fields() Fields { return e.fields }

// Retryable reports whether repeating the operation may succeed.
func (e *ClassifiedError) Retryable() bool { return e.retryable }

// WithContext returns a copy of e with one more field.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	c := *e
	c.fields = e.fields.with(key, value)
	return &c
}

// Is matches another ClassifiedError with the same category and message.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// Categorizer is implemented by domain errors that know their own category
// without being wrapped in a ClassifiedError.
type Categorizer interface {
	error
	ErrorCategory() ErrorCategory
}

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the first ClassifiedError in err's chain has category c.
func HasCategory(err error, c ErrorCategory) bool {
	classified, ok := AsClassified(err)
	return ok && classified.category == c
}

// CategoryOf resolves the category of err, preferring a ClassifiedError over
// a Categorizer. ok is false for unclassified errors.
func CategoryOf(err error) (c ErrorCategory, ok bool) {
	if classified, found := AsClassified(err); found {
		return classified.category, true
	}
	var cat Categorizer
	if stderrors.As(err, &cat) {
		return cat.ErrorCategory(), true
	}
	return "", false
}
