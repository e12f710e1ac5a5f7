package manual

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"idxdata/internal/source"
)

func drop(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sample = "Date,Open,High,Low,Close,Volume\n2026-03-09,100,110,95,105,1000\n"

func TestFetchByBareCode(t *testing.T) {
	dir := t.TempDir()
	drop(t, dir, "BBCA.csv", sample)

	a := New(Config{DropDir: dir})
	p, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Dialect != source.DialectUnknown {
		t.Errorf("dialect = %s, want unknown (normalizer decides)", p.Dialect)
	}
	if string(p.Data) != sample {
		t.Errorf("data mismatch")
	}
}

func TestFetchSuffixedAndDecoratedNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"GOTO.JK.csv", "GOTO_20260309.csv", "goto.csv"} {
		d := t.TempDir()
		drop(t, d, name, sample)
		a := New(Config{DropDir: d})
		if _, err := a.Fetch(context.Background(), "GOTO.JK", time.Time{}, time.Time{}); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	// unrelated files never match
	drop(t, dir, "BBRI.csv", sample)
	a := New(Config{DropDir: dir})
	_, err := a.Fetch(context.Background(), "GOTO.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindNotFound {
		t.Fatalf("kind = %s, want not_found", got)
	}
}

func TestFetchNewestWins(t *testing.T) {
	dir := t.TempDir()
	drop(t, dir, "BBCA_old.csv", "old")
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "BBCA_old.csv"), old, old); err != nil {
		t.Fatal(err)
	}
	drop(t, dir, "BBCA_new.csv", sample)

	a := New(Config{DropDir: dir})
	p, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(p.Data) != sample {
		t.Error("stale drop file returned instead of the newest")
	}
}

func TestFetchMissingDir(t *testing.T) {
	a := New(Config{DropDir: filepath.Join(t.TempDir(), "nope")})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindNotFound {
		t.Fatalf("kind = %s, want not_found", got)
	}
}

func TestFetchEmptyFile(t *testing.T) {
	dir := t.TempDir()
	drop(t, dir, "BBCA.csv", "")
	a := New(Config{DropDir: dir})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindNoData {
		t.Fatalf("kind = %s, want no_data", got)
	}
}
