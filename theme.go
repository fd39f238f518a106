package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	envTheme    = "SQTOP_THEME"
	envSurfaces = "SQTOP_SURFACES"
	envPalette  = "SQTOP_PALETTE"
)

type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeDark  ThemeMode = "dark"
	ThemeLight ThemeMode = "light"
)

type SurfaceMode string

const (
	SurfaceSolid       SurfaceMode = "solid"
	SurfaceTransparent SurfaceMode = "transparent"
)

type Palette string

const (
	PaletteDracula Palette = "dracula"
	PaletteClassic Palette = "classic"
	PaletteNord    Palette = "nord"
)

type Theme struct {
	Mode     ThemeMode
	Surfaces SurfaceMode

	TextMuted    lipgloss.TerminalColor
	TextStrong   lipgloss.TerminalColor
	TextOnAccent lipgloss.TerminalColor
	TextDim      lipgloss.TerminalColor

	Accent     lipgloss.TerminalColor
	Border     lipgloss.TerminalColor
	Surface    lipgloss.TerminalColor
	SurfaceAlt lipgloss.TerminalColor

	AccentPink   lipgloss.TerminalColor
	AccentCyan   lipgloss.TerminalColor
	AccentOrange lipgloss.TerminalColor
	AccentGreen  lipgloss.TerminalColor
	AccentBlue   lipgloss.TerminalColor
	Danger       lipgloss.TerminalColor

	SelectionBg lipgloss.TerminalColor
	SelectionFg lipgloss.TerminalColor
}

var theme = loadTheme()

func loadTheme() Theme {
	mode := parseThemeMode(os.Getenv(envTheme))
	surfaces := parseSurfaceMode(os.Getenv(envSurfaces))

	// Environment wins; the config file's [ui] theme key is the default.
	paletteName := os.Getenv(envPalette)
	if strings.TrimSpace(paletteName) == "" {
		paletteName = LoadConfig("").UI.Theme
	}
	palette := parsePalette(paletteName)

	if mode == ThemeDark {
		lipgloss.SetHasDarkBackground(true)
	} else if mode == ThemeLight {
		lipgloss.SetHasDarkBackground(false)
	}

	return newTheme(mode, surfaces, palette)
}

func parseThemeMode(value string) ThemeMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dark":
		return ThemeDark
	case "light":
		return ThemeLight
	case "auto", "":
		return ThemeAuto
	default:
		return ThemeAuto
	}
}

func parseSurfaceMode(value string) SurfaceMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "solid":
		return SurfaceSolid
	case "transparent", "":
		return SurfaceTransparent
	default:
		return SurfaceTransparent
	}
}

func parsePalette(value string) Palette {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "classic":
		return PaletteClassic
	case "nord":
		return PaletteNord
	case "dracula", "dracula-soft", "":
		return PaletteDracula
	default:
		return PaletteDracula
	}
}

func newTheme(mode ThemeMode, surfaces SurfaceMode, palette Palette) Theme {
	switch palette {
	case PaletteClassic:
		return Theme{
			Mode:         mode,
			Surfaces:     surfaces,
			TextMuted:    pickColor(mode, "#6B7394", "#9BA3BC"),
			TextStrong:   pickColor(mode, "#0B0D19", "#F8FBFF"),
			TextOnAccent: pickColor(mode, "#F8FBFF", "#0B0D19"),
			TextDim:      pickColor(mode, "#8890A8", "#7E869E"),
			Accent:       pickColor(mode, "#6C63FF", "#A8A0FF"),
			Border:       pickColor(mode, "#D7DBF5", "#454B66"),
			Surface:      pickSurface(mode, surfaces, "#F7F8FE", "#11121C"),
			SurfaceAlt:   pickSurface(mode, surfaces, "#FFFFFF", "#1A1C28"),
			AccentPink:   lipgloss.Color("#F06A9B"),
			AccentCyan:   lipgloss.Color("#4DD0E1"),
			AccentOrange: lipgloss.Color("#FFB347"),
			AccentGreen:  lipgloss.Color("#2BD19F"),
			AccentBlue:   lipgloss.Color("#5D9CFF"),
			Danger:       lipgloss.Color("#FF5F6D"),
			SelectionBg:  pickColor(mode, "#E6E9F6", "#3B3F5C"),
			SelectionFg:  pickColor(mode, "#0B0D19", "#F5F7FF"),
		}
	case PaletteNord:
		// Light side stays close to the classic palette so auto-mode
		// remains usable on light terminals.
		return Theme{
			Mode:         mode,
			Surfaces:     surfaces,
			TextMuted:    pickColor(mode, "#6B7394", "#616E88"),
			TextStrong:   pickColor(mode, "#2E3440", "#ECEFF4"),
			TextOnAccent: pickColor(mode, "#F8FBFF", "#2E3440"),
			TextDim:      pickColor(mode, "#8890A8", "#4C566A"),
			Accent:       pickColor(mode, "#5E81AC", "#88C0D0"),
			Border:       pickColor(mode, "#D7DBF5", "#434C5E"),
			Surface:      pickSurface(mode, surfaces, "#F7F8FE", "#2E3440"),
			SurfaceAlt:   pickSurface(mode, surfaces, "#FFFFFF", "#3B4252"),
			AccentPink:   lipgloss.Color("#B48EAD"),
			AccentCyan:   lipgloss.Color("#8FBCBB"),
			AccentOrange: lipgloss.Color("#D08770"),
			AccentGreen:  lipgloss.Color("#A3BE8C"),
			AccentBlue:   lipgloss.Color("#81A1C1"),
			Danger:       lipgloss.Color("#BF616A"),
			SelectionBg:  pickColor(mode, "#E6E9F6", "#434C5E"),
			SelectionFg:  pickColor(mode, "#0B0D19", "#ECEFF4"),
		}
	default: // PaletteDracula
		// Dracula-inspired dark palette with slightly muted accent usage.
		return Theme{
			Mode:         mode,
			Surfaces:     surfaces,
			TextMuted:    pickColor(mode, "#6B7394", "#B6B8C9"),
			TextStrong:   pickColor(mode, "#0B0D19", "#F8F8F2"),
			TextOnAccent: pickColor(mode, "#F8FBFF", "#282A36"),
			TextDim:      pickColor(mode, "#8890A8", "#7D8297"),

			// Keep accent softer and reserve it for focus/selection.
			Accent: pickColor(mode, "#6C63FF", "#A78BFA"),

			// Use a neutral border (Dracula selection-ish), not the accent.
			Border: pickColor(mode, "#D7DBF5", "#44475A"),

			Surface:    pickSurface(mode, surfaces, "#F7F8FE", "#282A36"),
			SurfaceAlt: pickSurface(mode, surfaces, "#FFFFFF", "#2F3344"),

			AccentPink:   lipgloss.Color("#FF79C6"),
			AccentCyan:   lipgloss.Color("#8BE9FD"),
			AccentOrange: lipgloss.Color("#FFB86C"),
			AccentGreen:  lipgloss.Color("#50FA7B"),
			AccentBlue:   lipgloss.Color("#6EA8FE"),
			Danger:       lipgloss.Color("#FF5555"),

			SelectionBg: pickColor(mode, "#E6E9F6", "#44475A"),
			SelectionFg: pickColor(mode, "#0B0D19", "#F8F8F2"),
		}
	}
}

func pickColor(mode ThemeMode, light, dark string) lipgloss.TerminalColor {
	switch mode {
	case ThemeDark:
		return lipgloss.Color(dark)
	case ThemeLight:
		return lipgloss.Color(light)
	default:
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
}

func pickSurface(mode ThemeMode, surfaces SurfaceMode, light, dark string) lipgloss.TerminalColor {
	if surfaces == SurfaceTransparent {
		return lipgloss.NoColor{}
	}
	return pickColor(mode, light, dark)
}
