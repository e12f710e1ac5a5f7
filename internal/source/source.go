package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Dialect is a source's native column naming/layout convention, declared by
// the adapter when it knows what it produced and detected by the normalizer
// otherwise.
type Dialect string

const (
	DialectUnknown      Dialect = "unknown"
	DialectYahoo        Dialect = "yahoo"
	DialectStooq        Dialect = "stooq"
	DialectIDX          Dialect = "idx"
	DialectAlphaVantage Dialect = "alphavantage"
)

// RawPayload is the undecoded result of one successful fetch: bytes plus
// enough context for the normalizer to map them. It is consumed once and
// discarded.
type RawPayload struct {
	SourceID string
	Dialect  Dialect
	Ticker   string
	Data     []byte
}

// Adapter is the single capability every source implements.
//
//go:generate mockgen -package=pipeline_test -destination=../pipeline/mock_adapter_test.go idxdata/internal/source Adapter
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, ticker string, from, to time.Time) (*RawPayload, error)
}

// Kind classifies adapter failures. The orchestrator's fallback logic
// matches on Kind only, never on source identity.
type Kind int

const (
	KindUnavailable Kind = iota // network/HTTP failure
	KindNotFound                // ticker unknown at this source
	KindRateLimited
	KindAuthError
	KindTimeout
	KindParseError
	KindNoData // successful response with nothing in it
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthError:
		return "auth_error"
	case KindTimeout:
		return "timeout"
	case KindParseError:
		return "parse_error"
	case KindNoData:
		return "no_data"
	default:
		return "unavailable"
	}
}

// Error is a typed adapter failure.
type Error struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a typed adapter error with fmt-style context.
func Errf(kind Kind, src, format string, args ...any) *Error {
	return &Error{Kind: kind, Source: src, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and source to an underlying error.
func Wrap(kind Kind, src string, err error) *Error {
	return &Error{Kind: kind, Source: src, Err: err}
}

// KindOf extracts the error kind; anything untyped counts as Unavailable.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// Retryable reports whether a failure of this kind is worth retrying
// against the same source. Auth and not-found failures never heal on
// retry; rate limits are the fallback chain's problem, not the retrier's.
func Retryable(k Kind) bool {
	return k == KindTimeout || k == KindUnavailable
}
