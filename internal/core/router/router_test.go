package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/dealmap/internal/core/model"
	"github.com/mohammed-shakir/dealmap/internal/deals"
	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

type fakeService struct {
	style classify.Style

	lastSel   string
	lastReq   model.FeatureInfoRequest
	lastPoint model.Point

	dealsErr   error
	inspectErr error
	wmsErr     error
}

func (f *fakeService) Style() classify.Style { return f.style }

func (f *fakeService) Filter(sel string) (string, bool) {
	f.lastSel = sel
	return f.style.Filter.Build(sel)
}

func (f *fakeService) Deals(_ context.Context, sel string) ([]byte, error) {
	f.lastSel = sel
	if f.dealsErr != nil {
		return nil, f.dealsErr
	}
	return []byte(`{"type":"FeatureCollection","features":[]}`), nil
}

func (f *fakeService) ForwardCountries(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "countries")
}

func (f *fakeService) FeatureInfo(_ context.Context, req model.FeatureInfoRequest, sel string) (deals.Inspection, error) {
	f.lastReq, f.lastSel = req, sel
	return deals.Inspection{Rows: []classify.Row{{Label: "Country", Value: "Peru"}}, Features: 1}, nil
}

func (f *fakeService) Inspect(_ context.Context, p model.Point, sel string) (deals.Inspection, error) {
	f.lastPoint, f.lastSel = p, sel
	if f.inspectErr != nil {
		return deals.Inspection{}, f.inspectErr
	}
	return deals.Inspection{Features: 1, Cell: "872a1072bffffff"}, nil
}

func (f *fakeService) ForwardLegendGraphic(w http.ResponseWriter, _ *http.Request, sel string) {
	f.lastSel = sel
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
}

func (f *fakeService) ProxyWMS(w http.ResponseWriter, _ *http.Request, sel string) error {
	f.lastSel = sel
	if f.wmsErr != nil {
		return f.wmsErr
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func setup(t *testing.T) (*fakeService, http.Handler) {
	t.Helper()
	svc := &fakeService{style: classify.DefaultStyle()}
	r := chi.NewRouter()
	Mount(r, slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	return svc, r
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestFilter_Endpoint(t *testing.T) {
	_, h := setup(t)
	cases := []struct {
		target string
		want   string
	}{
		{"/api/filter", `{"selection":"all","cql_filter":null}`},
		{"/api/filter?country=", `{"selection":"all","cql_filter":null}`},
		{"/api/filter?country=all", `{"selection":"all","cql_filter":null}`},
		{"/api/filter?country=Brazil", `{"selection":"Brazil","cql_filter":"country = 'Brazil'"}`},
		{"/api/filter?country=O%27Brien", `{"selection":"O'Brien","cql_filter":"country = 'O''Brien'"}`},
	}
	for _, tc := range cases {
		rr := get(h, tc.target)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", tc.target, rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != tc.want {
			t.Fatalf("%s: body=%s want %s", tc.target, got, tc.want)
		}
	}
}

func TestStyleAndLegend(t *testing.T) {
	_, h := setup(t)

	var st styleResponse
	if err := json.Unmarshal(get(h, "/api/style").Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.FilterAttribute != "country" || st.AllSelection != "all" || len(st.Fields) != len(classify.DefaultFields()) {
		t.Fatalf("style=%+v", st)
	}

	var legend []classify.LegendEntry
	if err := json.Unmarshal(get(h, "/api/legend").Body.Bytes(), &legend); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(classify.DefaultStyle().Legend(), legend); diff != "" {
		t.Fatalf("legend (-want +got):\n%s", diff)
	}
}

func TestDeals_Endpoint(t *testing.T) {
	svc, h := setup(t)
	rr := get(h, "/api/deals?country=Peru")
	if rr.Code != http.StatusOK || svc.lastSel != "Peru" {
		t.Fatalf("status=%d sel=%q", rr.Code, svc.lastSel)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	svc.dealsErr = errors.New("getfeature: connection refused")
	rr = get(h, "/api/deals")
	if rr.Code != http.StatusBadGateway || svc.lastSel != "all" {
		t.Fatalf("status=%d sel=%q", rr.Code, svc.lastSel)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatal("upstream details must not leak")
	}
}

func TestFeatureInfo_Endpoint(t *testing.T) {
	svc, h := setup(t)
	rr := get(h, "/api/featureinfo?bbox=-100,-50,100,50&width=256&height=128&i=10&j=20&crs=epsg:3857&country=Peru")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := model.FeatureInfoRequest{
		BBox: model.BBox{X1: -100, Y1: -50, X2: 100, Y2: 50}, Width: 256, Height: 128, I: 10, J: 20, CRS: "EPSG:3857",
	}
	if svc.lastReq != want || svc.lastSel != "Peru" {
		t.Fatalf("req=%+v sel=%q", svc.lastReq, svc.lastSel)
	}
	if !strings.Contains(rr.Body.String(), `"rows":[{"label":"Country","value":"Peru"}]`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestFeatureInfo_BadParams(t *testing.T) {
	_, h := setup(t)
	for _, q := range []string{
		"bbox=1,2,3&width=1&height=1&i=0&j=0",
		"bbox=3,2,1,4&width=1&height=1&i=0&j=0",
		"bbox=0,0,1,1&height=1&i=0&j=0",
		"bbox=0,0,1,1&width=10&height=10&i=10&j=0",
		"bbox=0,0,1,1&width=x&height=10&i=0&j=0",
		"bbox=0,0,1,1&width=10&height=10&i=0&j=0&crs=WGS84",
		"bbox=NaN,0,1,1&width=10&height=10&i=0&j=0",
	} {
		if rr := get(h, "/api/featureinfo?"+q); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, rr.Code)
		}
	}
}

func TestInspect_Endpoint(t *testing.T) {
	svc, h := setup(t)
	rr := get(h, "/api/inspect?lon=-75.5&lat=-9.25")
	if rr.Code != http.StatusOK || svc.lastPoint != (model.Point{Lon: -75.5, Lat: -9.25}) {
		t.Fatalf("status=%d point=%+v", rr.Code, svc.lastPoint)
	}

	for _, q := range []string{"lon=181&lat=0", "lon=0&lat=-91", "lat=1", "lon=a&lat=1"} {
		if rr := get(h, "/api/inspect?"+q); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, rr.Code)
		}
	}

	svc.inspectErr = deals.ErrNoFeature
	if rr := get(h, "/api/inspect?lon=1&lat=1"); rr.Code != http.StatusNotFound {
		t.Fatalf("no feature status=%d want 404", rr.Code)
	}
}

func TestWMSAndLegendGraphic(t *testing.T) {
	svc, h := setup(t)
	if rr := get(h, "/api/legend/graphic?country=Chile"); rr.Code != http.StatusOK || svc.lastSel != "Chile" {
		t.Fatalf("legend status=%d sel=%q", rr.Code, svc.lastSel)
	}
	if rr := get(h, "/wms?REQUEST=GetMap&country=%20"); rr.Code != http.StatusOK || svc.lastSel != "all" {
		t.Fatalf("wms status=%d sel=%q", rr.Code, svc.lastSel)
	}
	svc.wmsErr = deals.ErrUnsupportedRequest
	if rr := get(h, "/wms?REQUEST=GetCapabilities"); rr.Code != http.StatusBadRequest {
		t.Fatalf("unsupported status=%d", rr.Code)
	}
	if rr := get(h, "/api/countries"); rr.Body.String() != "countries" {
		t.Fatalf("countries body=%q", rr.Body.String())
	}
}
