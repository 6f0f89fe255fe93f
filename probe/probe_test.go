package probe

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/healops/health"
)

func TestIsPlaceholderKey(t *testing.T) {
	tests := map[string]bool{
		"":                         true,
		"   ":                      true,
		"your_openai_api_key_here": true,
		"YOUR_TELNYX_API_KEY_HERE": true,
		"sk-live-abc123":           false,
		"your_key":                 false,
		"key_here":                 false,
	}
	for key, want := range tests {
		if got := IsPlaceholderKey(key); got != want {
			t.Errorf("IsPlaceholderKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestAPIProbe_Healthy(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("page[size]")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := NewAPIProbe(APIConfig{
		Name:   NameTelephony,
		URL:    srv.URL,
		APIKey: "secret-key",
		Query:  map[string]string{"page[size]": "1"},
	})

	c := p.Probe(context.Background())

	if !c.IsHealthy() {
		t.Fatalf("Probe() = %+v, want healthy", c)
	}
	if c.Detail != "API connection successful" {
		t.Errorf("Detail = %q", c.Detail)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "1" {
		t.Errorf("page[size] = %q, want 1", gotQuery)
	}
	if p.Kind() != health.KindAPI {
		t.Errorf("Kind() = %v, want api", p.Kind())
	}
}

func TestAPIProbe_Describe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"},{"id":"c"}]}`))
	}))
	defer srv.Close()

	p := NewAPIProbe(APIConfig{Name: NameLLM, URL: srv.URL, APIKey: "k", Describe: countModels})

	if c := p.Probe(context.Background()); c.Detail != "3 models available" {
		t.Errorf("Detail = %q, want '3 models available'", c.Detail)
	}
}

func TestAPIProbe_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAPIProbe(APIConfig{Name: NameVoice, URL: srv.URL, APIKey: "bad"}).Probe(context.Background())

	if c.Status != health.StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy", c.Status)
	}
	if !strings.Contains(c.Error, "got 401") {
		t.Errorf("Error = %q", c.Error)
	}
}

func TestAPIProbe_PlaceholderKeySkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewAPIProbe(APIConfig{Name: NameLLM, URL: srv.URL, APIKey: "your_openai_api_key_here"}).Probe(context.Background())

	if c.IsHealthy() {
		t.Fatal("placeholder key should be unhealthy")
	}
	if c.Detail != "API key not configured" {
		t.Errorf("Detail = %q", c.Detail)
	}
	if hits.Load() != 0 {
		t.Errorf("server hits = %d, want 0", hits.Load())
	}
}

func TestAPIProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewAPIProbe(APIConfig{
		Name:    NameVoice,
		URL:     srv.URL,
		APIKey:  "k",
		Timeout: 50 * time.Millisecond,
	}).Probe(context.Background())

	if c.IsHealthy() {
		t.Fatal("slow API should be unhealthy")
	}
	if c.Error == "" {
		t.Error("Error should describe the timeout")
	}
}

func TestAPIProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAPIProbe(APIConfig{Name: NameLLM, URL: url, APIKey: "k"}).Probe(context.Background())
	if c.IsHealthy() || c.Error == "" {
		t.Errorf("Probe() = %+v, want unhealthy with error", c)
	}
}

type fakeDB struct {
	pingErr error
	execErr error
	queries []string
	closed  bool
}

func (f *fakeDB) PingContext(context.Context) error { return f.pingErr }

func (f *fakeDB) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	return nil, f.execErr
}

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

func TestSQLConfig_DSN(t *testing.T) {
	cfg := SQLConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "app",
		Password: "pw",
		Database: "solar",
		Timeout:  5 * time.Second,
	}

	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "app:pw@tcp(db.internal:3307)/solar") {
		t.Errorf("DSN() = %q", dsn)
	}
	if !strings.Contains(dsn, "timeout=5s") {
		t.Errorf("DSN() = %q, want timeout=5s", dsn)
	}
}

func TestSQLProbe(t *testing.T) {
	tests := []struct {
		name      string
		db        *fakeDB
		openErr   error
		wantOK    bool
		wantError string
	}{
		{name: "healthy", db: &fakeDB{}, wantOK: true},
		{name: "ping fails", db: &fakeDB{pingErr: errors.New("connection refused")}, wantError: "ping: connection refused"},
		{name: "query fails", db: &fakeDB{execErr: errors.New("read-only")}, wantError: "select 1: read-only"},
		{name: "open fails", openErr: errors.New("bad dsn"), wantError: "open: bad dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDSN string
			p := NewSQLProbe(SQLConfig{
				Name:     NameDatabase,
				User:     "root",
				Database: "solarfacts_db",
				Open: func(dsn string) (DB, error) {
					gotDSN = dsn
					if tt.openErr != nil {
						return nil, tt.openErr
					}
					return tt.db, nil
				},
			})

			c := p.Probe(context.Background())

			if !strings.Contains(gotDSN, "tcp(localhost:3306)") {
				t.Errorf("DSN = %q, want default host and port", gotDSN)
			}
			if c.IsHealthy() != tt.wantOK {
				t.Fatalf("Probe() = %+v, want healthy=%v", c, tt.wantOK)
			}
			if tt.wantOK && c.Detail != "Connected to localhost:3306/solarfacts_db" {
				t.Errorf("Detail = %q", c.Detail)
			}
			if !tt.wantOK && c.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", c.Error, tt.wantError)
			}
		})
	}
}

func TestSQLProbe_ReusesPoolAndCloses(t *testing.T) {
	db := &fakeDB{}
	var opens int
	p := NewSQLProbe(SQLConfig{
		Name: NameDatabase,
		Open: func(string) (DB, error) {
			opens++
			return db, nil
		},
	})

	p.Probe(context.Background())
	p.Probe(context.Background())

	if opens != 1 {
		t.Errorf("opens = %d, want 1", opens)
	}
	if len(db.queries) != 2 || db.queries[0] != "SELECT 1" {
		t.Errorf("queries = %v", db.queries)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !db.closed {
		t.Error("Close() did not close the pool")
	}
	if p.Kind() != health.KindDatabase {
		t.Errorf("Kind() = %v, want database", p.Kind())
	}
}

func TestEgressIPProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOK  bool
		wantMsg string
	}{
		{name: "ipv4", status: 200, body: `{"ip":"203.0.113.7"}`, wantOK: true, wantMsg: "External IP: 203.0.113.7"},
		{name: "ipv6", status: 200, body: `{"ip":"2001:db8::1"}`, wantOK: true, wantMsg: "External IP: 2001:db8::1"},
		{name: "missing ip", status: 200, body: `{}`},
		{name: "garbage ip", status: 200, body: `{"ip":"not-an-ip"}`},
		{name: "bad json", status: 200, body: `<html>`},
		{name: "server error", status: 502, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewEgressIPProbe(EgressConfig{Name: NameEgress, URL: srv.URL})
			c := p.Probe(context.Background())

			if c.IsHealthy() != tt.wantOK {
				t.Fatalf("Probe() = %+v, want healthy=%v", c, tt.wantOK)
			}
			if tt.wantOK && c.Detail != tt.wantMsg {
				t.Errorf("Detail = %q, want %q", c.Detail, tt.wantMsg)
			}
			if !tt.wantOK && c.Detail != "Failed to resolve external IP" {
				t.Errorf("Detail = %q", c.Detail)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	probes := Catalog(CatalogConfig{Timeout: time.Second})

	want := []struct {
		name string
		kind health.Kind
	}{
		{NameLLM, health.KindAPI},
		{NameTelephony, health.KindAPI},
		{NameVoice, health.KindAPI},
		{NameDatabase, health.KindDatabase},
		{NameEgress, health.KindNetwork},
	}

	if len(probes) != len(want) {
		t.Fatalf("Catalog() returned %d probes, want %d", len(probes), len(want))
	}
	for i, w := range want {
		if probes[i].Name() != w.name {
			t.Errorf("probe %d name = %q, want %q", i, probes[i].Name(), w.name)
		}
		if probes[i].Kind() != w.kind {
			t.Errorf("probe %s kind = %v, want %v", w.name, probes[i].Kind(), w.kind)
		}
	}

	// Keys are unset, so the API probes fail without touching the network.
	if c := probes[0].Probe(context.Background()); c.Detail != "API key not configured" {
		t.Errorf("LLM probe without key = %+v", c)
	}
}

func TestWithTimeout(t *testing.T) {
	err := withTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond) // ignores ctx
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("withTimeout() error = %v, want %v", err, ErrTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = withTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("withTimeout() on cancelled ctx = %v, want context.Canceled", err)
	}
}
