// Package deals implements the land-deal viewer operations on top of
// GeoServer: country filtering, decorated deal collections, click inspection
// and the cache keys a changed deal invalidates.
package deals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/dealmap/internal/cache"
	"github.com/mohammed-shakir/dealmap/internal/cache/keys"
	"github.com/mohammed-shakir/dealmap/internal/core/executor"
	"github.com/mohammed-shakir/dealmap/internal/core/model"
	"github.com/mohammed-shakir/dealmap/internal/core/observability"
	"github.com/mohammed-shakir/dealmap/internal/core/ogc"
	"github.com/mohammed-shakir/dealmap/internal/features"
	"github.com/mohammed-shakir/dealmap/internal/hotness"
	"github.com/mohammed-shakir/dealmap/internal/inspectevents"
	h3mapper "github.com/mohammed-shakir/dealmap/internal/mapper/h3"
	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

const (
	// Cells scoring below hotFloor are forgotten by SweepHotness.
	hotFloor = 0.05

	loadTimeout = 30 * time.Second
)

var (
	ErrNoFeature          = errors.New("no feature at this location")
	ErrUnsupportedRequest = errors.New("unsupported WMS request")
)

// EventSink receives inspection events. Publish must not block.
type EventSink interface {
	Publish(ev inspectevents.Event)
}

type Options struct {
	GeoServerURL   string
	Workspace      string
	Layer          string
	BaseFilter     string
	GeomAttr       string
	CountriesLayer string
	CountriesSRS   string
	FeatureCount   int
	LegendOptions  string
	Res            int
	CacheTTL       time.Duration

	// HotHalfLife and CellTTL let frequently inspected cells stay cached
	// longer. CellTTL.Base defaults to CacheTTL.
	HotHalfLife time.Duration
	CellTTL     hotness.Policy
}

// Inspection is what a viewer shows for a clicked deal.
type Inspection struct {
	Rows     []classify.Row    `json:"rows"`
	Summary  *features.Summary `json:"summary,omitempty"`
	Features int               `json:"features"`
	Cell     string            `json:"cell,omitempty"`
}

type Service struct {
	log    *slog.Logger
	exec   executor.Interface
	cache  cache.Interface
	mapper *h3mapper.Mapper
	hot    *hotness.Tracker
	events EventSink
	style  classify.Style
	opts   Options

	owsURL string
	wmsURL string
	group  singleflight.Group
	now    func() time.Time
}

// New builds a Service. c and events may be nil.
func New(log *slog.Logger, exec executor.Interface, c cache.Interface, events EventSink, style classify.Style, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.GeomAttr == "" {
		opts.GeomAttr = "geom"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.CellTTL.Base <= 0 {
		opts.CellTTL.Base = opts.CacheTTL
	}
	return &Service{
		log:    log,
		exec:   exec,
		cache:  c,
		mapper: h3mapper.New(),
		hot:    hotness.New(opts.HotHalfLife),
		events: events,
		style:  style,
		opts:   opts,
		owsURL: ogc.WorkspaceEndpoint(opts.GeoServerURL, opts.Workspace, "ows"),
		wmsURL: ogc.WorkspaceEndpoint(opts.GeoServerURL, opts.Workspace, "wms"),
		now:    time.Now,
	}
}

func (s *Service) Style() classify.Style { return s.style }

// Filter returns the country CQL for selection, false for the all sentinel.
func (s *Service) Filter(selection string) (string, bool) {
	cql, ok := s.style.Filter.Build(selection)
	observability.IncFilterSelection(ok)
	return cql, ok
}

func (s *Service) Legend() []classify.LegendEntry { return s.style.Legend() }

func (s *Service) Fields() []classify.Field { return s.style.Formatter.Fields() }

// dealsFilter is the full CQL sent for the deals layer.
func (s *Service) dealsFilter(selection string) string {
	country, _ := s.Filter(selection)
	return ogc.And(s.opts.BaseFilter, country)
}

// Deals returns the filtered deals as GeoJSON, each feature carrying
// marker_color and reaction_class.
func (s *Service) Deals(ctx context.Context, selection string) ([]byte, error) {
	cql := s.dealsFilter(selection)
	key := keys.CollectionKey(s.opts.Layer, cql)

	body, _, err := s.cached(ctx, key, s.opts.CacheTTL, func(ctx context.Context) ([]byte, error) {
		raw, err := s.fetchFeatures(ctx, model.FeatureQuery{Layer: s.opts.Layer, Filter: cql})
		if err != nil {
			return nil, err
		}
		fc, err := features.DecodeCollection(raw)
		if err != nil {
			return nil, err
		}
		counts := features.Decorate(fc, s.style.Palette, s.style.MarkerAttribute)
		for k, n := range counts {
			observability.AddClassifications(k.String(), n)
		}
		s.log.DebugContext(ctx, "deals decorated", "features", counts.Total())
		return features.Marshal(fc)
	})
	return body, err
}

// ForwardCountries streams the country boundaries layer.
func (s *Service) ForwardCountries(w http.ResponseWriter, r *http.Request) {
	params := ogc.BuildGetFeatureParams(model.FeatureQuery{
		Layer:   s.opts.CountriesLayer,
		SRSName: s.opts.CountriesSRS,
	})
	s.exec.Forward(w, r, s.owsURL, params, "application/json")
}

// FeatureInfo asks WMS for the features under a map click and renders the
// first one.
func (s *Service) FeatureInfo(ctx context.Context, req model.FeatureInfoRequest, selection string) (Inspection, error) {
	country, _ := s.Filter(selection)
	params := ogc.BuildGetFeatureInfoParams(req, s.opts.Layer, s.opts.FeatureCount, country)
	body, _, err := s.exec.Fetch(ctx, s.wmsURL, params, "application/json")
	if err != nil {
		return Inspection{}, fmt.Errorf("getfeatureinfo: %w", err)
	}
	fc, err := features.DecodeCollection(body)
	if err != nil {
		return Inspection{}, err
	}
	props, ok := features.First(fc)
	if !ok {
		return Inspection{}, ErrNoFeature
	}
	return Inspection{
		Rows:     s.style.Formatter.RenderRows(props),
		Features: len(fc.Features),
	}, nil
}

// Inspect resolves a click through its H3 cell: the deals intersecting the
// cell are fetched (or read from cache) and the first one is rendered.
func (s *Service) Inspect(ctx context.Context, p model.Point, selection string) (Inspection, error) {
	cell, err := s.mapper.CellForPoint(pointOf(p), s.opts.Res)
	if err != nil {
		return Inspection{}, err
	}
	poly, err := s.mapper.CellPolygon(cell)
	if err != nil {
		return Inspection{}, err
	}

	base := s.dealsFilter(selection)
	cql := ogc.And(base, ogc.Intersects(s.opts.GeomAttr, poly))
	key := keys.CellKey(s.opts.Layer, s.opts.Res, cell, base)
	score := s.hot.Observe(cell)

	body, hit, err := s.cached(ctx, key, s.opts.CellTTL.TTL(score), func(ctx context.Context) ([]byte, error) {
		return s.fetchFeatures(ctx, model.FeatureQuery{Layer: s.opts.Layer, Filter: cql})
	})
	if err != nil {
		return Inspection{}, err
	}
	fc, err := features.DecodeCollection(body)
	if err != nil {
		return Inspection{}, err
	}

	if s.events != nil {
		s.events.Publish(inspectevents.Event{
			Layer:     s.opts.Layer,
			Selection: selection,
			Cell:      cell,
			Res:       s.opts.Res,
			Lon:       p.Lon,
			Lat:       p.Lat,
			Features:  len(fc.Features),
			CacheHit:  hit,
			Hotness:   score,
			TS:        s.now().UTC(),
		})
	}

	props, ok := features.First(fc)
	if !ok {
		return Inspection{Cell: cell}, ErrNoFeature
	}
	summary := features.Summarize(props, s.style)
	return Inspection{
		Rows:     s.style.Formatter.RenderRows(props),
		Summary:  &summary,
		Features: len(fc.Features),
		Cell:     cell,
	}, nil
}

// ForwardLegendGraphic streams the GeoServer legend PNG for the selection.
func (s *Service) ForwardLegendGraphic(w http.ResponseWriter, r *http.Request, selection string) {
	country, _ := s.Filter(selection)
	params := ogc.BuildGetLegendGraphicParams(s.opts.Layer, s.opts.LegendOptions, country)
	s.exec.Forward(w, r, s.wmsURL, params, "image/png")
}

// ProxyWMS forwards a viewer's GetMap or GetLegendGraphic with the filter
// for selection replacing whatever CQL the viewer sent.
func (s *Service) ProxyWMS(w http.ResponseWriter, r *http.Request, selection string) error {
	country, _ := s.Filter(selection)
	params, ok := ogc.RewriteWMSParams(r.URL.Query(), s.opts.Layer, country)
	if !ok {
		return ErrUnsupportedRequest
	}
	s.exec.Forward(w, r, s.wmsURL, params, "")
	return nil
}

func (s *Service) fetchFeatures(ctx context.Context, q model.FeatureQuery) ([]byte, error) {
	body, _, err := s.exec.Fetch(ctx, s.owsURL, ogc.BuildGetFeatureParams(q), "application/json")
	if err != nil {
		return nil, fmt.Errorf("getfeature %s: %w", q.Layer, err)
	}
	return body, nil
}

// cached reads key from the cache or runs load once across concurrent
// callers and stores its result. Cache failures degrade to a direct load.
func (s *Service) cached(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if s.cache != nil {
		if b, ok, err := cache.Get(ctx, s.cache, key); err != nil {
			s.log.WarnContext(ctx, "cache read failed", "key", key, "err", err)
		} else if ok {
			return b, true, nil
		}
	}

	// The shared load outlives any single caller; each caller only waits
	// on its own ctx.
	ch := s.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		b, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(lctx, key, b, ttl); err != nil {
				s.log.WarnContext(lctx, "cache write failed", "key", key, "err", err)
			}
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

// SweepHotness drops cold cells from the hotness tracker every interval
// until ctx is done.
func (s *Service) SweepHotness(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := s.hot.Prune(hotFloor)
			s.log.Debug("hotness sweep", "tracked", n)
		}
	}
}
