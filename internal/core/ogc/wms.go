package ogc

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/dealmap/internal/core/model"
)

func BuildGetFeatureInfoParams(req model.FeatureInfoRequest, layer string, featureCount int, cql string) url.Values {
	crs := req.CRS
	if crs == "" {
		crs = "EPSG:3857"
	}
	params := url.Values{}
	params.Set("SERVICE", "WMS")
	params.Set("VERSION", "1.3.0")
	params.Set("REQUEST", "GetFeatureInfo")
	params.Set("FORMAT", "image/png")
	params.Set("TRANSPARENT", "true")
	params.Set("LAYERS", layer)
	params.Set("QUERY_LAYERS", layer)
	params.Set("STYLES", "")
	params.Set("CRS", crs)
	params.Set("BBOX", req.BBox.String())
	params.Set("WIDTH", strconv.Itoa(req.Width))
	params.Set("HEIGHT", strconv.Itoa(req.Height))
	params.Set("I", strconv.Itoa(req.I))
	params.Set("J", strconv.Itoa(req.J))
	params.Set("INFO_FORMAT", "application/json")
	if featureCount > 0 {
		params.Set("FEATURE_COUNT", strconv.Itoa(featureCount))
	}
	if cql != "" {
		params.Set("CQL_FILTER", cql)
	}
	return params
}

func BuildGetLegendGraphicParams(layer, options, cql string) url.Values {
	params := url.Values{}
	params.Set("SERVICE", "WMS")
	params.Set("VERSION", "1.3.0")
	params.Set("REQUEST", "GetLegendGraphic")
	params.Set("FORMAT", "image/png")
	params.Set("LAYER", layer)
	if options != "" {
		params.Set("LEGEND_OPTIONS", options)
	}
	if cql != "" {
		params.Set("CQL_FILTER", cql)
	}
	return params
}

// WMS requests the proxy lets through.
var allowedWMSRequests = map[string]struct{}{
	"getmap":           {},
	"getlegendgraphic": {},
}

// RewriteWMSParams copies a viewer's WMS query, drops the viewer's own
// CQL_FILTER and country parameter, and applies the server-built filter.
// It reports false when the request type is not allowed.
func RewriteWMSParams(in url.Values, layer, cql string) (url.Values, bool) {
	out := url.Values{}
	var request string
	for k, vs := range in {
		switch strings.ToUpper(k) {
		case "CQL_FILTER", "COUNTRY":
			continue
		case "REQUEST":
			if len(vs) > 0 {
				request = vs[0]
			}
		}
		out[k] = append([]string(nil), vs...)
	}
	if _, ok := allowedWMSRequests[strings.ToLower(strings.TrimSpace(request))]; !ok {
		return nil, false
	}
	if getFold(out, "SERVICE") == "" {
		out.Set("SERVICE", "WMS")
	}
	if getFold(out, "LAYERS") == "" && getFold(out, "LAYER") == "" {
		if strings.EqualFold(request, "GetLegendGraphic") {
			out.Set("LAYER", layer)
		} else {
			out.Set("LAYERS", layer)
		}
	}
	if cql != "" {
		out.Set("CQL_FILTER", cql)
	}
	return out, true
}

// WMS parameter names are case-insensitive
func getFold(v url.Values, key string) string {
	for k, vs := range v {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
