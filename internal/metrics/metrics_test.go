package metrics

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/dealmap/internal/core/observability"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestInit_BuildInfoAndRuntime(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "1.2.0", Revision: "abc123"}})
	body := scrape(t, p)

	want := `dealmap_build_info{goversion="` + runtime.Version() + `",revision="abc123",version="1.2.0"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %q in:\n%s", want, body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatal("go runtime collector not registered")
	}
}

func TestInit_BuildInfoDefaults(t *testing.T) {
	p := Init(Config{Enabled: true})
	n, err := testutil.GatherAndCount(p.Gatherer(), "dealmap_build_info")
	if err != nil || n != 1 {
		t.Fatalf("build info series=%d err=%v", n, err)
	}
	if body := scrape(t, p); !strings.Contains(body, `revision="unknown",version="dev"`) {
		t.Fatalf("defaults not applied:\n%s", body)
	}
}

func TestProvider_ServesAppMetrics(t *testing.T) {
	p := Init(Config{Enabled: true})
	observability.Init(p.Registerer(), true)
	observability.IncFilterSelection(false)

	if body := scrape(t, p); !strings.Contains(body, `filter_selections_total{kind="all"}`) {
		t.Fatalf("app metrics not exposed:\n%s", body)
	}
}

func TestProvider_Disabled(t *testing.T) {
	p := Init(Config{})
	if p.Enabled() {
		t.Fatal("expected disabled provider")
	}
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}
