package reporting

import (
	"strconv"

	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
)

// AsInt extracts an integer metric from the metric map, defaulting to 0 when
// the key is absent or no field parses. Metrics come back under different
// fields depending on their declared type; money metrics use microsValue.
func AsInt(metrics map[string]admobdomain.MetricValue, key string) int64 {
	mv, ok := metrics[key]
	if !ok {
		return 0
	}

	if v, err := strconv.ParseInt(string(mv.IntegerValue), 10, 64); err == nil && mv.IntegerValue != "" {
		return v
	}
	if v, err := strconv.ParseInt(string(mv.MicrosValue), 10, 64); err == nil && mv.MicrosValue != "" {
		return v
	}

	// sometimes comes back as a decimal string
	for _, raw := range []string{string(mv.DecimalValue), string(mv.Value)} {
		if raw == "" {
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return int64(f)
		}
	}

	return 0
}

// AsFloat extracts a floating-point metric, defaulting to 0.0 when the key is
// absent or no field parses.
func AsFloat(metrics map[string]admobdomain.MetricValue, key string) float64 {
	mv, ok := metrics[key]
	if !ok {
		return 0.0
	}

	if mv.DoubleValue != nil {
		return *mv.DoubleValue
	}

	for _, raw := range []string{string(mv.DecimalValue), string(mv.Value)} {
		if raw == "" {
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}

	return 0.0
}
