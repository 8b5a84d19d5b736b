package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of the given category.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{category: category, message: message}}
}

// WrapError starts an error of the given category caused by err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.fields = b.err.fields.with(key, value)
	return b
}

// Retryable marks the error as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.retryable = true
	return b
}

func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	return &e
}

func ConfigError(message string) *ErrorBuilder { return NewError(CategoryConfig, message) }

func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }

// PermissionError reports a capability the active permission set does not grant.
func PermissionError(message string) *ErrorBuilder { return NewError(CategoryPermission, message) }

func PluginError(message string) *ErrorBuilder { return NewError(CategoryPlugin, message) }

func SandboxError(message string) *ErrorBuilder { return NewError(CategorySandbox, message) }

// NetworkError is retryable by default.
func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

// CacheError reports a cache failure. The CLI logs these as warnings.
func CacheError(message string) *ErrorBuilder { return NewError(CategoryCache, message) }

func BuildError(message string) *ErrorBuilder { return NewError(CategoryBuild, message) }

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).Retryable()
}

func EventStoreError(message string) *ErrorBuilder { return NewError(CategoryEventStore, message) }

func InternalError(message string) *ErrorBuilder { return NewError(CategoryInternal, message) }
