package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilter_Empty(t *testing.T) {
	prg, err := compileFilter("")
	require.NoError(t, err)
	assert.Nil(t, prg)
	assert.True(t, evalFilter(prg, map[string]any{"kind": "inventory_changed"}))
}

func TestCompileFilter_Invalid(t *testing.T) {
	_, err := compileFilter("event.kind ==")
	assert.Error(t, err)

	// Well formed but not a boolean.
	_, err = compileFilter("event.kind")
	assert.Error(t, err)
}

func TestEvalFilter(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		event map[string]any
		want  bool
	}{
		{
			name:  "kind match",
			expr:  `event.kind == "inventory_changed"`,
			event: map[string]any{"kind": "inventory_changed"},
			want:  true,
		},
		{
			name:  "kind mismatch",
			expr:  `event.kind == "po_status_changed"`,
			event: map[string]any{"kind": "inventory_changed"},
			want:  false,
		},
		{
			name:  "entity filter",
			expr:  `event.kind == "inventory_changed" && event.entity_id == 7`,
			event: map[string]any{"kind": "inventory_changed", "entity_id": int64(7)},
			want:  true,
		},
		{
			name:  "action membership",
			expr:  `"transition_rejected" in event.actions`,
			event: map[string]any{"actions": []string{"transition_rejected"}},
			want:  true,
		},
		{
			name: "missing key is no match",
			expr: `event.severity == "critical"`,
			event: map[string]any{
				"kind": "alert_generated",
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prg, err := compileFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, evalFilter(prg, tt.event))
		})
	}
}
