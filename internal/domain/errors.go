package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a failed remote call (connect, timeout, rate limit, 5xx).
// A retriable NetworkError means the broker is temporarily unavailable.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "submit_order", "list_orders")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrDuplicateClientOrderID is returned when the broker already holds an order with the same client id.
	// Callers treat it as already satisfied.
	ErrDuplicateClientOrderID = errors.New("duplicate client order id")

	// ErrInsufficientFunds is returned when the broker rejects an order for lack of buying power.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOrderNotFound is returned when cancelling an order the broker no longer knows.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRemoteUnavailable marks broker outages (5xx, 429, transport failure).
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrInvalidSymbol is returned when a symbol is not supported or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrDegenerateRange is returned when low >= high or the range has no usable spacing.
	ErrDegenerateRange = errors.New("degenerate range")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
