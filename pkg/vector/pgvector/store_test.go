package pgvector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"nil 配置", nil},
		{"缺少 dsn", &Config{Dimension: 3}},
		{"维度非法", &Config{DSN: "postgres://localhost/db", Dimension: 0}},
		{"未知度量", &Config{DSN: "postgres://localhost/db", Dimension: 3, Metric: "dot"}},
		{"非法表名", &Config{DSN: "postgres://localhost/db", Dimension: 3, Table: "x; DROP TABLE y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(ctx, tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, distanceToScore(0, "cosine"), 1e-9)
	assert.InDelta(t, -1.0, distanceToScore(2.5, "cosine"), 1e-9)
	assert.InDelta(t, -0.5, distanceToScore(0.5, "l2"), 1e-9)
	assert.Equal(t, "embedding <-> $1", distanceExpr("l2"))
	assert.Equal(t, "embedding <=> $1", distanceExpr("cosine"))
}
