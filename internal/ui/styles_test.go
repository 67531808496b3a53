package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPalette_CyanAccent(t *testing.T) {
	// The accent color is the one constant the TUI identity hangs on.
	assert.Equal(t, "45", ColorCyan)
	assert.NotEqual(t, ColorCyan, ColorCyanDim, "active and inactive accents must differ")
}

func TestDefaultStyles_AllFieldsRender(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// Then: every style renders its text
	for name, rendered := range map[string]string{
		"header":    styles.Header.Render("x"),
		"success":   styles.Success.Render("x"),
		"warning":   styles.Warning.Render("x"),
		"error":     styles.Error.Render("x"),
		"dim":       styles.Dim.Render("x"),
		"stage":     styles.Stage.Render("x"),
		"active":    styles.Active.Render("x"),
		"progress":  styles.Progress.Render("x"),
		"border":    styles.Border.Render("x"),
		"sparkline": styles.Sparkline.Render("x"),
		"speed":     styles.Speed.Render("x"),
		"label":     styles.Label.Render("x"),
	} {
		assert.Contains(t, rendered, "x", "style %s should render its text", name)
	}
}

func TestDefaultStyles_PanelHasBorder(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// When: rendering panel content
	rendered := styles.Panel.Render("status")

	// Then: the rounded border frames it
	assert.Contains(t, rendered, "status")
	assert.Contains(t, rendered, "╭")
	assert.Contains(t, rendered, "╰")
}

func TestNoColorStyles_PlainRendering(t *testing.T) {
	// Given: no-color styles
	styles := NoColorStyles()

	// Then: text passes through unstyled, panels carry no border
	assert.Equal(t, "test", styles.Success.Render("test"))
	assert.Equal(t, "test", styles.Header.Render("test"))
	assert.Equal(t, "test", styles.Panel.Render("test"))
	assert.Equal(t, "test", styles.Sparkline.Render("test"))
}

func TestStyles_RenderStageIndicators(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// When: rendering stage indicators
	active := styles.Active.Render("●")
	dim := styles.Dim.Render("○")

	// Then: they render without panic
	assert.Contains(t, active, "●")
	assert.Contains(t, dim, "○")
}

func TestGetStyles_WithNoColor(t *testing.T) {
	// When: getting styles with noColor=true
	styles := GetStyles(true)

	// Then: returns no-color styles (plain rendering)
	text := styles.Success.Render("test")
	assert.Equal(t, "test", text)
}

func TestGetStyles_WithColor(t *testing.T) {
	// When: getting styles with noColor=false
	styles := GetStyles(false)

	// Then: returns colored styles
	// Note: exact ANSI codes depend on terminal, but text should be present
	text := styles.Success.Render("test")
	assert.Contains(t, text, "test")
}
