// Package errs is the error taxonomy shared by every component of the
// tunnel control plane. Every fallible operation returns one of the Kind
// values below wrapped in an *Error; nothing in this module panics on
// user input, only on invariant breaches in internal code.
package errs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type Kind uint8

const (
	KindOther           Kind = iota // Unclassified — maps to 500
	KindValidation                  // A value type constructor failed its invariants — 400
	KindBinaryNotFound              // Binary Locator exhausted its search — 404
	KindConnection                  // Supervisor start failed for a reason other than auth/port — 502
	KindAuthentication              // Agent output matched the auth-failed pattern — 401
	KindPortInUse                   // Agent output matched the address-in-use pattern — 409
	KindStartupTimeout              // startup_timeout elapsed without readiness or fatal pattern — 504
	KindConflict                    // Registry invariant (id, path, remote port) violated on insert — 409
	KindInvalidState                // Operation invoked in an incompatible state — 409
	KindCapacity                    // Registry or group cap reached — 429
	KindCleanup                     // One or more closes failed during scoped teardown — 207
	KindCancelled                   // Operation cancelled by the caller — 499
	KindDegraded                    // Facade is in degraded mode after a failed rollback — 503
	KindIO                          // Disk / filesystem issues — 500
	KindNetwork                     // DNS, reachability, process I/O — 503
)

// Op identifies where an error occurred, e.g. "client.ExposeHTTP".
type Op string

// Error is the taxonomy's carrier type. Wrapping preserves the
// originating Kind via Unwrap — errors never silently swap kind.
type Error struct {
	Op      Op
	Kind    Kind
	Err     error
	Message string
}

// E builds an *Error from a mix of Op, Kind, error, string, and *Error
// arguments. Usage: errs.E(op, errs.KindConflict, err, "path already routed")
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch v := arg.(type) {
		case Op:
			e.Op = v
		case Kind:
			e.Kind = v
		case *Error:
			cp := *v
			e.Err = &cp
		case error:
			e.Err = v
		case string:
			e.Message = v
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err: the first Kind other than
// KindOther found along its chain of *Error values, so a plain
// errs.E(op, err) wrapper reports the Kind of the error it wraps.
// Returns KindOther if no *Error in the chain carries a Kind.
func KindOf(err error) Kind {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind != KindOther {
			return e.Kind
		}
		err = e.Err
	}
	return KindOther
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, k Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}

// HTTPResponse writes a JSON error body with the status code derived
// from err's Kind. Used by the optional control API.
func HTTPResponse(w http.ResponseWriter, err error) {
	slog.Error("errs: request failed", "err", err)

	code := http.StatusInternalServerError
	msg := "internal server error"

	var e *Error
	if errors.As(err, &e) {
		code = kindToStatus(KindOf(err))

		if e.Message != "" {
			msg = e.Message
		} else if code != http.StatusInternalServerError && e.Err != nil {
			msg = e.Err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func kindToStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindBinaryNotFound:
		return http.StatusNotFound
	case KindPortInUse, KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindCapacity:
		return http.StatusTooManyRequests
	case KindConnection:
		return http.StatusBadGateway
	case KindStartupTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork, KindDegraded:
		return http.StatusServiceUnavailable
	case KindCleanup:
		return http.StatusMultiStatus
	case KindCancelled:
		return 499
	case KindIO, KindOther:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
