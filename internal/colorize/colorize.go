// Package colorize assigns stable terminal colors to source documents so
// reference markers and legend entries for the same document always render
// in the same color. Assignment is a pure function of the source name — the
// same document gets the same color across questions, sessions, and result
// orderings.
package colorize

import (
	"hash/fnv"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the ANSI 256 colors cycled through for sources. Chosen for
// legibility on both dark and light terminals.
var palette = []lipgloss.Color{
	lipgloss.Color("39"),  // blue
	lipgloss.Color("78"),  // green
	lipgloss.Color("214"), // orange
	lipgloss.Color("212"), // pink
	lipgloss.Color("141"), // purple
	lipgloss.Color("51"),  // cyan
	lipgloss.Color("226"), // yellow
	lipgloss.Color("203"), // red
	lipgloss.Color("115"), // teal
	lipgloss.Color("181"), // rose
}

// legendLabelStyle renders legend headers (e.g. "References:").
var legendLabelStyle = lipgloss.NewStyle().Bold(true)

// ColorFor returns the palette color for a source document. Deterministic:
// the same source always maps to the same color.
func ColorFor(source string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(source))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Assign returns the color for every source in the given set. The result is
// independent of input order and duplicates.
func Assign(sources []string) map[string]lipgloss.Color {
	colors := make(map[string]lipgloss.Color, len(sources))
	for _, src := range sources {
		colors[src] = ColorFor(src)
	}
	return colors
}

// Render styles text in the color assigned to the given source.
func Render(source, text string) string {
	return lipgloss.NewStyle().Foreground(ColorFor(source)).Render(text)
}

// RenderLabel styles a legend header in bold.
func RenderLabel(text string) string {
	return legendLabelStyle.Render(text)
}

// SortedSources returns the unique sources in lexical order, for stable
// legend rendering.
func SortedSources(sources []string) []string {
	seen := map[string]bool{}
	var unique []string
	for _, src := range sources {
		if !seen[src] {
			seen[src] = true
			unique = append(unique, src)
		}
	}
	sort.Strings(unique)
	return unique
}
