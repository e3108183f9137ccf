// Package ogc builds GeoServer WFS and WMS request parameters.
package ogc

import (
	"net/url"
	"strings"

	"github.com/mohammed-shakir/dealmap/internal/core/model"
)

const defaultOutputFormat = "application/json"

func OWSEndpoint(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/") + "/ows"
}

// WorkspaceEndpoint returns the workspace scoped virtual service, e.g.
// http://host/geoserver/<ws>/wms. An empty workspace gives the global one.
func WorkspaceEndpoint(geoServerBase, workspace, service string) string {
	base := strings.TrimRight(geoServerBase, "/")
	ws := strings.Trim(workspace, "/")
	if ws == "" {
		return base + "/" + service
	}
	return base + "/" + url.PathEscape(ws) + "/" + service
}

func BuildGetFeatureParams(q model.FeatureQuery) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", q.Layer)
	outputFormat := strings.TrimSpace(q.OutputFormat)
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	params.Set("outputFormat", outputFormat)
	if q.SRSName != "" {
		params.Set("srsName", q.SRSName)
	}
	if q.Filter != "" {
		params.Set("CQL_FILTER", q.Filter)
	}
	return params
}
