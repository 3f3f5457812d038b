package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{"nil context", nil, UnknownValue},
		{"empty version", NewContext("", "2026-01-01"), UnknownValue},
		{"valid version", NewContext("1.0.0", "2026-01-01"), "1.0.0"},
		{"pre-release", NewContext("1.0.0-beta.1", ""), "1.0.0-beta.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContext_BuildDateAndRelease(t *testing.T) {
	var nilCtx *Context
	assert.Equal(t, UnknownValue, nilCtx.GetBuildDate())
	assert.Equal(t, "krishisahay@unknown", nilCtx.Release())

	ctx := NewContext("2.1.0", "2026-10-01T12:00:00Z")
	assert.Equal(t, "2026-10-01T12:00:00Z", ctx.GetBuildDate())
	assert.Equal(t, "krishisahay@2.1.0", ctx.Release())
}
