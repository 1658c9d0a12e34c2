package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []domain.AlertRule
		wantErr  string
	}{
		{
			name:     "empty string yields no rules",
			raw:      "",
			expected: nil,
		},
		{
			name: "single global rule",
			raw:  "ctr;<;0.01",
			expected: []domain.AlertRule{
				{Metric: "ctr", Op: domain.OpLessThan, Threshold: 0.01},
			},
		},
		{
			name: "rule scoped to app and ad unit",
			raw:  "match_rate;<=;0.5;My App;Banner Bottom",
			expected: []domain.AlertRule{
				{Metric: "match_rate", Op: domain.OpLessOrEqual, Threshold: 0.5, App: "My App", AdUnit: "Banner Bottom"},
			},
		},
		{
			name: "multiple rules with whitespace",
			raw:  "ctr;<;0.01, impressions;>=;1000;My App",
			expected: []domain.AlertRule{
				{Metric: "ctr", Op: domain.OpLessThan, Threshold: 0.01},
				{Metric: "impressions", Op: domain.OpGreaterOrEqual, Threshold: 1000, App: "My App"},
			},
		},
		{
			name:    "unknown metric",
			raw:     "revenue;<;1",
			wantErr: "unknown metric",
		},
		{
			name:    "unknown operator",
			raw:     "ctr;!=;0.01",
			wantErr: "unsupported comparison operator",
		},
		{
			name:    "bad threshold",
			raw:     "ctr;<;low",
			wantErr: "invalid threshold",
		},
		{
			name:    "too few fields",
			raw:     "ctr;<",
			wantErr: "expected metric;operator;threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rules)
		})
	}
}
