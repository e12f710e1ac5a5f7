package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idxdata/internal/httpx"
	"idxdata/internal/source"
)

func serve(t *testing.T, key string, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: key, BaseURL: srv.URL}, httpx.New(5*time.Second))
}

func TestFetchNoKey(t *testing.T) {
	a := New(Config{}, httpx.New(time.Second))
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindAuthError {
		t.Fatalf("kind = %s, want auth_error", got)
	}
}

func TestFetchOK(t *testing.T) {
	a := serve(t, "demo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "TIME_SERIES_DAILY" {
			t.Errorf("function = %q", got)
		}
		if got := r.URL.Query().Get("datatype"); got != "csv" {
			t.Errorf("datatype = %q", got)
		}
		w.Write([]byte("timestamp,open,high,low,close,volume\n2026-03-09,100,110,95,105,1000\n"))
	})
	p, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Dialect != source.DialectAlphaVantage {
		t.Errorf("dialect = %s", p.Dialect)
	}
}

func TestFetchQuotaNote(t *testing.T) {
	a := serve(t, "demo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 5 requests per minute."}`))
	})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindRateLimited {
		t.Fatalf("kind = %s, want rate_limited (err: %v)", got, err)
	}
}

func TestFetchBadKey(t *testing.T) {
	a := serve(t, "bogus", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "the parameter apikey is invalid or missing."}`))
	})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindAuthError {
		t.Fatalf("kind = %s, want auth_error (err: %v)", got, err)
	}
}

func TestFetchNonCSV(t *testing.T) {
	a := serve(t, "demo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	})
	_, err := a.Fetch(context.Background(), "BBCA.JK", time.Time{}, time.Time{})
	if got := source.KindOf(err); got != source.KindParseError {
		t.Fatalf("kind = %s, want parse_error (err: %v)", got, err)
	}
}
