// Package router exposes the deal viewer API over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/dealmap/internal/core/model"
	"github.com/mohammed-shakir/dealmap/internal/deals"
	mylog "github.com/mohammed-shakir/dealmap/internal/logger"
	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

// Service is the part of deals.Service the handlers need.
type Service interface {
	Style() classify.Style
	Filter(selection string) (string, bool)
	Deals(ctx context.Context, selection string) ([]byte, error)
	ForwardCountries(w http.ResponseWriter, r *http.Request)
	FeatureInfo(ctx context.Context, req model.FeatureInfoRequest, selection string) (deals.Inspection, error)
	Inspect(ctx context.Context, p model.Point, selection string) (deals.Inspection, error)
	ForwardLegendGraphic(w http.ResponseWriter, r *http.Request, selection string)
	ProxyWMS(w http.ResponseWriter, r *http.Request, selection string) error
}

const maxImageSide = 8192

// Mount registers the viewer API on r.
func Mount(r chi.Router, logger *slog.Logger, svc Service) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/style", HandleStyle(svc))
		r.Get("/legend", HandleLegend(svc))
		r.Get("/legend/graphic", HandleLegendGraphic(svc))
		r.Get("/filter", HandleFilter(svc))
		r.Get("/deals", HandleDeals(logger, svc))
		r.Get("/countries", svc.ForwardCountries)
		r.Get("/featureinfo", HandleFeatureInfo(logger, svc))
		r.Get("/inspect", HandleInspect(logger, svc))
	})
	r.Get("/wms", HandleWMS(svc))
}

type styleResponse struct {
	Legend           []classify.LegendEntry `json:"legend"`
	Fields           []classify.Field       `json:"fields"`
	FilterAttribute  string                 `json:"filter_attribute"`
	AllSelection     string                 `json:"all_selection"`
	UnspecifiedLabel string                 `json:"unspecified_label"`
	Placeholder      string                 `json:"placeholder"`
}

func HandleStyle(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := svc.Style()
		writeJSON(w, http.StatusOK, styleResponse{
			Legend:           st.Legend(),
			Fields:           st.Formatter.Fields(),
			FilterAttribute:  st.Filter.Attribute,
			AllSelection:     st.Filter.All,
			UnspecifiedLabel: st.UnspecifiedLabel,
			Placeholder:      st.Formatter.Placeholder(),
		})
	}
}

func HandleLegend(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Style().Legend())
	}
}

type filterResponse struct {
	Selection string  `json:"selection"`
	CQLFilter *string `json:"cql_filter"`
}

func HandleFilter(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel := selection(r, svc)
		out := filterResponse{Selection: sel}
		if cql, ok := svc.Filter(sel); ok {
			out.CQLFilter = &cql
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func HandleDeals(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel := selection(r, svc)
		ctx := mylog.WithSelection(r.Context(), sel)
		body, err := svc.Deals(ctx, sel)
		if err != nil {
			writeError(ctx, w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func HandleFeatureInfo(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseFeatureInfoRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sel := selection(r, svc)
		ctx := mylog.WithSelection(r.Context(), sel)
		out, err := svc.FeatureInfo(ctx, req, sel)
		if err != nil {
			writeError(ctx, w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func HandleInspect(logger *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ParsePoint(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sel := selection(r, svc)
		ctx := mylog.WithSelection(r.Context(), sel)
		out, err := svc.Inspect(ctx, p, sel)
		if err != nil {
			writeError(ctx, w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func HandleLegendGraphic(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ForwardLegendGraphic(w, r, selection(r, svc))
	}
}

func HandleWMS(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ProxyWMS(w, r, selection(r, svc)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
}

// selection reads the country parameter; missing or blank means all.
func selection(r *http.Request, svc Service) string {
	v := r.URL.Query().Get("country")
	if strings.TrimSpace(v) == "" {
		return svc.Style().Filter.All
	}
	return v
}

var crsPattern = regexp.MustCompile(`^EPSG:\d{4,6}$`)

// ParseFeatureInfoRequest reads the map state a viewer sends on click:
// bbox=x1,y1,x2,y2 in the map CRS, the image size and the pixel clicked.
func ParseFeatureInfoRequest(r *http.Request) (model.FeatureInfoRequest, error) {
	q := r.URL.Query()

	bbox, err := parseBBOX(q.Get("bbox"))
	if err != nil {
		return model.FeatureInfoRequest{}, fmt.Errorf("invalid bbox: %w", err)
	}
	width, err := parseInt(q, "width", 1, maxImageSide)
	if err != nil {
		return model.FeatureInfoRequest{}, err
	}
	height, err := parseInt(q, "height", 1, maxImageSide)
	if err != nil {
		return model.FeatureInfoRequest{}, err
	}
	i, err := parseInt(q, "i", 0, width-1)
	if err != nil {
		return model.FeatureInfoRequest{}, err
	}
	j, err := parseInt(q, "j", 0, height-1)
	if err != nil {
		return model.FeatureInfoRequest{}, err
	}

	crs := strings.ToUpper(strings.TrimSpace(q.Get("crs")))
	if crs != "" && !crsPattern.MatchString(crs) {
		return model.FeatureInfoRequest{}, fmt.Errorf("invalid crs %q", crs)
	}

	return model.FeatureInfoRequest{BBox: bbox, Width: width, Height: height, I: i, J: j, CRS: crs}, nil
}

// ParsePoint reads lon and lat in EPSG:4326.
func ParsePoint(r *http.Request) (model.Point, error) {
	q := r.URL.Query()
	lon, err := parseFloat(q.Get("lon"))
	if err != nil {
		return model.Point{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := parseFloat(q.Get("lat"))
	if err != nil {
		return model.Point{}, fmt.Errorf("lat: %w", err)
	}
	if lon < -180 || lon > 180 {
		return model.Point{}, errors.New("longitude must be in [-180,180]")
	}
	if lat < -90 || lat > 90 {
		return model.Point{}, errors.New("latitude must be in [-90,90]")
	}
	return model.Point{Lon: lon, Lat: lat}, nil
}

func parseBBOX(raw string) (model.BBox, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 4 {
		return model.BBox{}, errors.New("expected 4 comma-separated values: x1,y1,x2,y2")
	}
	var v [4]float64
	for n, p := range parts {
		f, err := parseFloat(p)
		if err != nil {
			return model.BBox{}, fmt.Errorf("value %d: %w", n+1, err)
		}
		v[n] = f
	}
	if v[2] <= v[0] || v[3] <= v[1] {
		return model.BBox{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return model.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

func parseInt(q url.Values, name string, lo, hi int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer", name)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be in [%d,%d]", name, lo, hi)
	}
	return n, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("parse float: not finite")
	}
	return f, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors to status codes: no feature is 404, a
// cancelled client is not logged, anything else is an upstream failure.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, deals.ErrNoFeature):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, deals.ErrUnsupportedRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		logger.WarnContext(ctx, "upstream request failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
