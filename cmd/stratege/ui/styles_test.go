package ui

import (
	"strings"
	"testing"
)

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("STRATEGE_DARK_MODE", "1")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme when STRATEGE_DARK_MODE=1")
	}

	t.Setenv("STRATEGE_DARK_MODE", "")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme when STRATEGE_DARK_MODE is unset")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}
	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for a white background")
	}
}

func TestThemeByName(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("STRATEGE_DARK_MODE", "")
	cases := map[string]string{
		"dark":  "dark",
		"DARK":  "dark",
		"light": "light",
		"auto":  "light",
		"":      "light",
	}
	for in, want := range cases {
		if got := ThemeByName(in).Name; got != want {
			t.Errorf("ThemeByName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderDivider(t *testing.T) {
	s := NewStyles(LightTheme())
	if got := s.RenderDivider(4); !strings.Contains(got, "────") {
		t.Errorf("divider = %q", got)
	}
	if got := s.RenderDivider(-3); strings.Contains(got, "─") {
		t.Errorf("negative width rendered %q", got)
	}
}
