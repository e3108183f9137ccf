package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
	LocalSize int
	LocalTTL  time.Duration

	// adaptive TTL of inspected cells
	HotHalfLife  time.Duration
	HotThreshold float64
	WarmTTL      time.Duration
	HotTTL       time.Duration
}

type InvalidationCfg struct {
	Enabled bool
	Driver  string
	Topic   string
	Brokers string
	GroupID string
}

type InspectEventsCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	Queue   int
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	BuildRevision  string
	GeoServerURL   string
	Workspace      string
	DealsLayer     string
	DealsFilter    string
	DealsGeomAttr  string
	CountriesLayer string
	CountriesSRS   string
	FeatureCount   int
	LegendOptions  string
	StyleFile      string
	H3Res          int
	CORSOrigins    []string
	MetricsEnabled bool
	Cache          CacheCfg
	Invalidation   InvalidationCfg
	InspectEvents  InspectEventsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 7)
	if res < 0 || res > 15 {
		res = 7
	}
	featureCount := getint("FEATURE_COUNT", 10)
	if featureCount <= 0 {
		featureCount = 10
	}
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		BuildRevision:  getenv("BUILD_REVISION", ""),
		GeoServerURL:   getenv("GEOSERVER_URL", "http://localhost:8080/geoserver"),
		Workspace:      getenv("GEOSERVER_WORKSPACE", "Cabinet_de_juristes"),
		DealsLayer:     getenv("DEALS_LAYER", "Cabinet_de_juristes:deals_"),
		DealsFilter:    getenv("DEALS_BASE_FILTER", "indigenous_people_or_local_communities=true"),
		DealsGeomAttr:  getenv("DEALS_GEOM_ATTR", "geom"),
		CountriesLayer: getenv("COUNTRIES_LAYER", "Cabinet_de_juristes:worldadministrativeboundaries"),
		CountriesSRS:   getenv("COUNTRIES_SRS", "EPSG:3857"),
		FeatureCount:   featureCount,
		LegendOptions:  getenv("LEGEND_OPTIONS", "fontName:Inter;fontSize:12;bgColor:0x111827;labelMargin:6"),
		StyleFile:      getenv("STYLE_FILE", ""),
		H3Res:          res,
		CORSOrigins:    splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		Cache: CacheCfg{
			Enabled:   getbool("CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("CACHE_TTL_DEFAULT", 60*time.Second),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			LocalSize: getint("CACHE_LOCAL_SIZE", 256),
			LocalTTL:  getduration("CACHE_LOCAL_TTL", 15*time.Second),

			HotHalfLife:  getduration("HOT_HALF_LIFE", time.Minute),
			HotThreshold: getfloat("HOT_THRESHOLD", 3),
			WarmTTL:      getduration("CACHE_TTL_WARM", 5*time.Minute),
			HotTTL:       getduration("CACHE_TTL_HOT", 15*time.Minute),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Driver:  getenv("INVALIDATION_DRIVER", "none"),
			Topic:   getenv("KAFKA_TOPIC", "deal-invalidation"),
			Brokers: brokers,
			GroupID: getenv("KAFKA_GROUP_ID", "dealmap-invalidator"),
		},
		InspectEvents: InspectEventsCfg{
			Enabled: getbool("INSPECT_EVENTS_ENABLED", false),
			Topic:   getenv("INSPECT_EVENTS_TOPIC", "deal-inspect"),
			Brokers: brokers,
			Queue:   getint("INSPECT_EVENTS_QUEUE", 1024),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splits "a, b,,c" into [a b c]
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
