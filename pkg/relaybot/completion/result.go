package completion

import "errors"

// FailureKind classifies why a completion produced no reply text.
type FailureKind string

const (
	// FailureTransport covers connection errors, timeouts and non-2xx
	// responses.
	FailureTransport FailureKind = "transport"

	// FailureMalformed is a 2xx response without a usable reply.
	FailureMalformed FailureKind = "malformed-response"
)

var (
	ErrTransport         = errors.New("completion transport error")
	ErrMalformedResponse = errors.New("completion response malformed")
)

// Result is the outcome of one completion call: either reply text or a
// failure kind with its cause.
type Result struct {
	// Text is the reply, set only on success.
	Text string

	// Failure is empty on success.
	Failure FailureKind

	// Err is the underlying cause of a failure.
	Err error
}

// Success returns a successful Result.
func Success(text string) Result { return Result{Text: text} }

// Failure returns a failed Result.
func Failure(kind FailureKind, err error) Result {
	return Result{Failure: kind, Err: err}
}

// OK reports whether the completion succeeded.
func (r Result) OK() bool { return r.Failure == "" }
