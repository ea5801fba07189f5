package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/padwake/internal/input"
	"github.com/loykin/padwake/internal/metrics"
	"github.com/loykin/padwake/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

type fixedSnapshot supervisor.Snapshot

func (f fixedSnapshot) Snapshot() supervisor.Snapshot { return supervisor.Snapshot(f) }

func setupRouter(t *testing.T, base string, snap supervisor.Snapshot) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(fixedSnapshot(snap), base).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	snap := supervisor.Snapshot{
		GuestID:     "100",
		State:       supervisor.StateStopped,
		Since:       time.Unix(1700000000, 0).UTC(),
		Listening:   true,
		Controllers: []supervisor.Controller{{ID: input.DeviceID(0), Name: "Xbox Wireless Controller"}},
		FailedWakes: 1,
	}
	h := setupRouter(t, "/padwake/", snap)
	rec := doReq(t, h, http.MethodGet, "/padwake/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got supervisor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GuestID != "100" || got.State != supervisor.StateStopped || !got.Listening || got.FailedWakes != 1 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(got.Controllers) != 1 || got.Controllers[0].Name != "Xbox Wireless Controller" {
		t.Fatalf("unexpected controllers %+v", got.Controllers)
	}
}

func TestHealthz(t *testing.T) {
	h := setupRouter(t, "", supervisor.Snapshot{})
	rec := doReq(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected healthz response %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}
	metrics.IncWake(metrics.ResultSuccess)
	h := setupRouter(t, "", supervisor.Snapshot{})
	rec := doReq(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "padwake_guest_wake_attempts_total") {
		t.Fatalf("metrics output missing wake counter")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := setupRouter(t, "", supervisor.Snapshot{})
	if rec := doReq(t, h, http.MethodPost, "/status"); rec.Code == http.StatusOK {
		t.Fatalf("POST /status must not succeed")
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{"": "", "/": "", "api": "/api", "/api/": "/api", " /x/y// ": "/x/y"}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

// lockedBuffer is written from the server goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewServerLogsListenFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = taken.Close() }()

	var out lockedBuffer
	log := slog.New(slog.NewTextHandler(&out, nil))
	srv := NewServer(taken.Addr().String(), "", fixedSnapshot{}, nil, log)
	defer func() { _ = srv.Close() }()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "status server error") {
		if time.Now().After(deadline) {
			t.Fatalf("bind failure was not logged: %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
