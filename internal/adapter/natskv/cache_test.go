package natskv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"velocity:p-1", "velocity.p-1"},
		{"idem:u1:POST:/api/v1/projects:abc", "idem.u1.POST./api/v1/projects.abc"},
		{"plain", "plain"},
		{"a b*c>d", "a_b_c_d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), tt.in)
	}
}

func TestKey_HashesInvalid(t *testing.T) {
	for _, in := range []string{"idem::POST:/x:k", ":leading", "trailing:", "ünïcode", ""} {
		got := Key(in)
		assert.True(t, strings.HasPrefix(got, "h."), "%q -> %q", in, got)
		assert.True(t, validKey(got), "%q -> %q", in, got)
		assert.Len(t, got, 2+64)
	}
	assert.NotEqual(t, Key("idem::a"), Key("idem::b"))
}
