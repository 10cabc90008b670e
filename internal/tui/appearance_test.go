package tui

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestGlyphs_EnvOverridesConfig(t *testing.T) {
	t.Setenv("WEBTODO_TUI_GLYPHS", "")
	setGlyphs(glyphSetUnicode)

	applyGlyphPreference("ascii")
	if got := glyphs(); got != glyphSetASCII {
		t.Fatalf("expected ascii from config; got %v", got)
	}

	t.Setenv("WEBTODO_TUI_GLYPHS", "unicode")
	applyGlyphPreference("ascii")
	if got := glyphs(); got != glyphSetUnicode {
		t.Fatalf("expected env to win; got %v", got)
	}

	// Unknown values keep the current set.
	t.Setenv("WEBTODO_TUI_GLYPHS", "bogus")
	applyGlyphPreference("")
	if got := glyphs(); got != glyphSetUnicode {
		t.Fatalf("expected unknown to be ignored; got %v", got)
	}
	if glyphDone() == "[x]" {
		t.Fatalf("unicode set must not use ascii checkbox")
	}
	setGlyphs(glyphSetUnicode)
}

func TestMarkdownStyle_FollowsTheme(t *testing.T) {
	t.Setenv("WEBTODO_TUI_MD_STYLE", "")
	t.Setenv("WEBTODO_TUI_DARKBG", "")
	t.Setenv("COLORFGBG", "")

	t.Setenv("WEBTODO_TUI_THEME", "light")
	if got := markdownStyle(); got != "light" {
		t.Fatalf("expected light; got %q", got)
	}
	t.Setenv("WEBTODO_TUI_THEME", "dark")
	if got := markdownStyle(); got != "dark" {
		t.Fatalf("expected dark; got %q", got)
	}
	t.Setenv("WEBTODO_TUI_MD_STYLE", "light")
	if got := markdownStyle(); got != "light" {
		t.Fatalf("explicit md style must win; got %q", got)
	}
}

func TestThemeFromEnv_COLORFGBG(t *testing.T) {
	t.Setenv("WEBTODO_TUI_THEME", "")
	t.Setenv("WEBTODO_TUI_DARKBG", "")

	t.Setenv("COLORFGBG", "15;0")
	if dark, ok := themeFromEnv(); !ok || !dark {
		t.Fatalf("15;0 should be dark: %v %v", dark, ok)
	}
	t.Setenv("COLORFGBG", "0;15")
	if dark, ok := themeFromEnv(); !ok || dark {
		t.Fatalf("0;15 should be light: %v %v", dark, ok)
	}
}

func TestRenderTaskText_KeepsText(t *testing.T) {
	const line = "(A) 2024-01-01 Call mom +family @phone due:2024-01-07"
	got := xansi.Strip(renderTaskText(line, false))
	for _, w := range strings.Fields(line) {
		if !strings.Contains(got, w) {
			t.Fatalf("missing %q in %q", w, got)
		}
	}
}

func TestHelp_RendersKeys(t *testing.T) {
	t.Setenv("WEBTODO_TUI_MD_STYLE", "dark")
	out := xansi.Strip(renderMarkdown(helpMarkdown(), 60))
	if !strings.Contains(out, "toggle") || !strings.Contains(out, "reload") {
		t.Fatalf("help missing key table:\n%s", out)
	}
}
