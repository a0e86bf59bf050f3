package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogLineFormat(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   string
	}{
		{
			name:   "separators",
			fields: []Field{{"role", "user"}, {"content", "hi"}},
			want:   `{"role": "user", "content": "hi"}`,
		},
		{
			name:   "escapes",
			fields: []Field{{"content", "say \"hi\"\n\tback\\slash/<b>"}},
			want:   `{"content": "say \"hi\"\n\tback\\slash/<b>"}`,
		},
		{
			name:   "non-ascii",
			fields: []Field{{"content", "café 😀"}},
			want:   `{"content": "caf\u00e9 \ud83d\ude00"}`,
		},
		{
			name:   "control characters",
			fields: []Field{{"content", "a\x01b"}},
			want:   `{"content": "a\u0001b"}`,
		},
		{
			name: "scalars",
			fields: []Field{
				{"returncode", 0}, {"ok", true}, {"none", nil},
				{"whole", 2.0}, {"half", 0.5}, {"big", 1e20},
			},
			want: `{"returncode": 0, "ok": true, "none": null, "whole": 2.0, "half": 0.5, "big": 1e+20}`,
		},
		{
			name:   "nested values sort keys",
			fields: []Field{{"extra", map[string]any{"b": 1, "a": []any{"x", false}}}},
			want:   `{"extra": {"a": ["x", false], "b": 1}}`,
		},
		{
			name:   "typed slices",
			fields: []Field{{"tags", []string{"a", "b"}}},
			want:   `{"tags": ["a", "b"]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "log.txt")
			require.NoError(t, NewJSONLog(path).Append(tt.fields...))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", string(data))
		})
	}
}

func TestJSONLogReadBack(t *testing.T) {
	log := NewJSONLog(filepath.Join(t.TempDir(), "chat.txt"))

	lines, err := log.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, log.Append(Field{"role", "user"}, Field{"content", "café"}))
	require.NoError(t, log.Append(Field{"role", "agent"}, Field{"content", "ok"}))

	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "café", records[0]["content"])
	assert.Equal(t, "agent", records[1]["role"])
}

func TestJSONLogRejectsNaN(t *testing.T) {
	log := NewJSONLog(filepath.Join(t.TempDir(), "x.txt"))
	var zero float64
	assert.Error(t, log.Append(Field{"v", zero / zero}))
}
