package browser

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"idxdata/internal/source"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestFetchNotConfigured(t *testing.T) {
	a := New(Config{})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindUnavailable {
		t.Fatalf("kind = %s, want unavailable", got)
	}
}

func TestFetchReadsStdout(t *testing.T) {
	skipOnWindows(t)
	a := New(Config{
		Command: "sh",
		Args: []string{"-c",
			`printf 'Date,Open,High,Low,Close,Adj Close,Volume\n2026-03-09,100,110,95,105,104.5,1000\n'`},
	})
	p, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Dialect != source.DialectYahoo {
		t.Errorf("dialect = %s", p.Dialect)
	}
	if !strings.HasPrefix(string(p.Data), "Date,") {
		t.Errorf("unexpected payload: %q", p.Data)
	}
}

func TestFetchEmptyOutputIsNoData(t *testing.T) {
	skipOnWindows(t)
	a := New(Config{Command: "true"})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindNoData {
		t.Fatalf("kind = %s, want no_data (err: %v)", got, err)
	}
}

func TestFetchCommandFailureCarriesStderr(t *testing.T) {
	skipOnWindows(t)
	a := New(Config{Command: "sh", Args: []string{"-c", "echo download blocked >&2; exit 1"}})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindUnavailable {
		t.Fatalf("kind = %s, want unavailable", got)
	}
	if !strings.Contains(err.Error(), "download blocked") {
		t.Errorf("stderr lost: %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	skipOnWindows(t)
	a := New(Config{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 50 * time.Millisecond})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindTimeout {
		t.Fatalf("kind = %s, want timeout (err: %v)", got, err)
	}
}
