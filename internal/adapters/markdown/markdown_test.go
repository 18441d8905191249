package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name, in, contains, absent string
	}{
		{"bold", "Se vota el **viernes**", "<strong>viernes</strong>", ""},
		{"hard wraps", "linea uno\nlinea dos", "<br", ""},
		{"raw html escaped", "<script>alert(1)</script>", "", "<script>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.in)
			if tt.contains != "" && !strings.Contains(got, tt.contains) {
				t.Errorf("Render(%q) = %q, want it to contain %q", tt.in, got, tt.contains)
			}
			if tt.absent != "" && strings.Contains(got, tt.absent) {
				t.Errorf("Render(%q) = %q, must not contain %q", tt.in, got, tt.absent)
			}
		})
	}
}
