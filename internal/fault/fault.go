package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure so handlers and tests can branch on
// the class of error rather than on message text.
type Kind int

const (
	// Validation: the request itself is unusable (missing file, unknown format).
	Validation Kind = iota
	// Decode: the upload looked acceptable but the audio could not be decoded.
	Decode
	// Infrastructure: an external service was unreachable or answered non-success.
	Infrastructure
	// JobFailed: the remote transcription job reached its Failed terminal state.
	JobFailed
	// Timeout: the poll budget was exhausted before a terminal state.
	Timeout
	// Enrichment: the text-analytics stage failed; callers degrade, never fail.
	Enrichment
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Decode:
		return "decode"
	case Infrastructure:
		return "infrastructure"
	case JobFailed:
		return "job_failed"
	case Timeout:
		return "timeout"
	case Enrichment:
		return "enrichment"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(k Kind, msg string) error {
	return &Error{Kind: k, Message: msg}
}

func Newf(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func Wrap(k Kind, msg string, cause error) error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

// KindOf reports the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Is lets tests and callers check classification with errors.Is style calls.
func Is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// HTTPStatus maps an error to the response status: client faults get 400,
// everything else (including unclassified errors) gets 500.
func HTTPStatus(err error) int {
	k, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch k {
	case Validation, Decode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
