package deals

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/dealmap/internal/cache/keys"
	"github.com/mohammed-shakir/dealmap/internal/core/model"
	"github.com/mohammed-shakir/dealmap/internal/core/ogc"
	"github.com/mohammed-shakir/dealmap/internal/invalidation"
)

// InvalidationKeys lists the cache keys that may hold a deal of the given
// countries located in cells: the unfiltered view and each country view,
// both as whole collections and per cell.
func (s *Service) InvalidationKeys(layer string, countries, cells []string) []string {
	filters := []string{s.opts.BaseFilter}
	for _, c := range countries {
		if cql, ok := s.style.Filter.Build(c); ok {
			filters = append(filters, ogc.And(s.opts.BaseFilter, cql))
		}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, f := range filters {
		add(keys.CollectionKey(layer, f))
		for _, cell := range cells {
			add(keys.CellKey(layer, s.opts.Res, cell, f))
		}
	}
	return out
}

// PlanKeys implements the invalidation runner's key planner. Events for
// other layers touch nothing cached here.
func (s *Service) PlanKeys(ev invalidation.Event) ([]string, error) {
	if strings.TrimSpace(ev.Layer) != s.opts.Layer {
		return nil, nil
	}
	var cells []string
	if ev.Point != nil {
		c, err := s.mapper.CellForPoint(orb.Point{ev.Point.Lon, ev.Point.Lat}, s.opts.Res)
		if err != nil {
			return nil, fmt.Errorf("event point: %w", err)
		}
		cells = append(cells, c)
	}
	for _, raw := range ev.H3Cells {
		c, err := s.mapper.ToParent(strings.TrimSpace(raw), s.opts.Res)
		if err != nil {
			return nil, fmt.Errorf("event cell %q: %w", raw, err)
		}
		cells = append(cells, c)
	}
	return s.InvalidationKeys(ev.Layer, ev.Countries(), cells), nil
}

func pointOf(p model.Point) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}
