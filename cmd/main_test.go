package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-pixel-worker/internal/pipeline"
)

func TestCountedPixels(t *testing.T) {
	tests := []struct {
		name  string
		meta  any
		want  int
		found bool
	}{
		{"single", pipeline.Meta{"pixels": 12}, 12, true},
		{"per worker", []any{pipeline.Meta{"pixels": 4}, pipeline.Meta{"pixels": 3}, pipeline.Meta{}}, 7, true},
		{"no counter", pipeline.Meta{"name": "x"}, 0, false},
		{"other meta", "label", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := countedPixels(tt.meta)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.found, ok)
		})
	}
}

func TestJobMeta(t *testing.T) {
	base := map[string]any{"name": "from-config", "threshold": 120}
	meta := jobMeta("frame-1", base)

	assert.Equal(t, "frame-1", meta["name"])
	assert.Equal(t, 120, meta["threshold"])
	assert.Equal(t, "from-config", base["name"], "config meta is not modified")

	assert.Equal(t, pipeline.Meta{"name": "solo"}, jobMeta("solo", nil))
}
