package cors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowList_Allowed(t *testing.T) {
	list := NewAllowList([]string{"https://cethatch.github.io", "http://localhost:3000", ""})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"exact match", "https://cethatch.github.io", true},
		{"second entry", "http://localhost:3000", true},
		{"absent origin", "", false},
		{"different scheme", "http://cethatch.github.io", false},
		{"trailing slash", "https://cethatch.github.io/", false},
		{"subdomain", "https://evil.cethatch.github.io", false},
		{"different port", "http://localhost:3001", false},
		{"case differs", "HTTPS://CETHATCH.GITHUB.IO", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, list.Allowed(tt.origin))
		})
	}
}

func TestAllowList_Apply(t *testing.T) {
	list := NewAllowList([]string{"https://cethatch.github.io"})

	t.Run("allowed origin is echoed", func(t *testing.T) {
		h := http.Header{}
		list.Apply(h, "https://cethatch.github.io")
		assert.Equal(t, "https://cethatch.github.io", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", h.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "application/json", h.Get("Content-Type"))
	})

	t.Run("disallowed origin omits header", func(t *testing.T) {
		h := http.Header{}
		list.Apply(h, "https://attacker.example")
		_, present := h["Access-Control-Allow-Origin"]
		assert.False(t, present)
		assert.Equal(t, "POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	})

	t.Run("missing origin omits header", func(t *testing.T) {
		h := http.Header{}
		list.Apply(h, "")
		_, present := h["Access-Control-Allow-Origin"]
		assert.False(t, present)
	})
}
