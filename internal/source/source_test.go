package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(Errf(KindRateLimited, "Yahoo", "quota")); got != KindRateLimited {
		t.Errorf("typed error: kind = %s", got)
	}
	wrapped := fmt.Errorf("fetch BBCA.JK: %w", Errf(KindNotFound, "Stooq", "404"))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("wrapped error: kind = %s", got)
	}
	if got := KindOf(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("deadline: kind = %s", got)
	}
	if got := KindOf(errors.New("boom")); got != KindUnavailable {
		t.Errorf("untyped: kind = %s", got)
	}
}

func TestRetryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindTimeout:     true,
		KindUnavailable: true,
		KindNotFound:    false,
		KindRateLimited: false,
		KindAuthError:   false,
		KindParseError:  false,
		KindNoData:      false,
	}
	for k, want := range retryable {
		if got := Retryable(k); got != want {
			t.Errorf("Retryable(%s) = %v, want %v", k, got, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrap(KindUnavailable, "Yahoo", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped cause lost")
	}
	if err.Error() != "Yahoo: unavailable: connection refused" {
		t.Errorf("message = %q", err.Error())
	}
}
