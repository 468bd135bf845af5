// Package apperr defines the error kinds surfaced by the ranking service and
// their HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindBadRequest Kind = "bad_request"
	KindInternal   Kind = "internal"
)

// RankingExistsPrefix marks conflicts raised because a mutation would
// invalidate an existing ranking. Clients branch on it to offer a forced retry.
const RankingExistsPrefix = "RANKING_EXISTS_WARNING:"

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an invariant violation. err may be nil.
func Internal(err error, format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// RankingExists builds the conflict returned when op would change the inputs
// of rankings already generated for years.
func RankingExists(op string, years []int) error {
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, y := range sorted {
		parts[i] = strconv.Itoa(y)
	}
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("%s %s would invalidate existing rankings for %s", RankingExistsPrefix, op, strings.Join(parts, ", ")),
	}
}

// KindOf reports the kind of err. Errors that do not carry a kind are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsRankingExists reports whether err is a ranking invalidation conflict.
func IsRankingExists(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConflict && strings.HasPrefix(e.Message, RankingExistsPrefix)
}

// Message returns the client-facing message for err. Internal details of
// unclassified errors are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
