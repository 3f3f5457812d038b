package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		envVars map[string]string
		want    string
		wantErr bool
	}{
		{name: "empty string", input: "", want: ""},
		{name: "literal string", input: "literal-value", want: "literal-value"},
		{
			name:    "simple variable expansion",
			input:   "${KRISHI_TEST_TOKEN}",
			envVars: map[string]string{"KRISHI_TEST_TOKEN": "secret123"},
			want:    "secret123",
		},
		{
			name:    "variable with prefix and suffix",
			input:   "Bearer ${KRISHI_TEST_TOKEN}",
			envVars: map[string]string{"KRISHI_TEST_TOKEN": "abc123"},
			want:    "Bearer abc123",
		},
		{
			name:    "default used when variable is set",
			input:   "${KRISHI_TEST_TOKEN:-fallback}",
			envVars: map[string]string{"KRISHI_TEST_TOKEN": "actual"},
			want:    "actual",
		},
		{name: "default used when variable is missing", input: "${KRISHI_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty default", input: "${KRISHI_TEST_UNSET:-}", want: ""},
		{name: "missing required variable", input: "${KRISHI_TEST_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "KRISHI_TEST_UNSET")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("trims trailing newline", func(t *testing.T) {
		path := filepath.Join(dir, "gemini_key")
		require.NoError(t, os.WriteFile(path, []byte("AIza-secret\n"), 0o600))

		got, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "AIza-secret", got)
	})

	t.Run("empty file is an error", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

		_, err := ReadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("directory is rejected", func(t *testing.T) {
		_, err := ReadFile(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := ReadFile("")
		require.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather_key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))
	t.Setenv("KRISHI_TEST_WEATHER", "from-env")

	got, err := Resolve(path, "${KRISHI_TEST_WEATHER}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "file takes precedence")

	got, err = Resolve("", "${KRISHI_TEST_WEATHER}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = Resolve("", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Resolve(filepath.Join(dir, "missing"), "ignored")
	require.Error(t, err)
}
