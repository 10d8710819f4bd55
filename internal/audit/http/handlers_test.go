package audithttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger/internal/audit"
	"github.com/odyssey-erp/ledger/internal/shared"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := &shared.MemoryAuditLog{}
	for i, action := range []string{"txn.post", "txn.void"} {
		if err := log.Record(context.Background(), shared.AuditLog{
			ActorID:  7,
			Action:   action,
			Entity:   "transaction",
			EntityID: "42",
			Meta:     map[string]any{"voucher_no": "JV-000001"},
			At:       time.Date(2024, 3, 10, 9+i, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), audit.NewService(audit.NewMemoryRepository(log)))
	h.now = func() time.Time { return time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestTimelineReturnsJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?action=txn.void", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"action":"txn.void"`) || strings.Contains(body, `"action":"txn.post"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newTestRouter(t)
	for _, query := range []string{"from=2024-03-12&to=2024-03-01", "page=0", "actor_id=abc", "to=12/03/2024"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestExportWritesCSV(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "2024-03-10T10:00:00Z,7,txn.void,transaction,42,") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
}
