package packager

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-graphviz"
)

// Models tend to wrap DOT source in markdown fences even when told not to.
var fencePattern = regexp.MustCompile("```dot\\s*|```")

// StripFences removes ```dot and bare ``` markers and trims the remainder.
// Applying it twice yields the same result as once.
func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

// RenderMindMapPNG lays out the DOT source and returns the PNG bytes. The
// source is not validated beforehand; malformed model output surfaces here.
func RenderMindMapPNG(ctx context.Context, dotSource string) ([]byte, error) {
	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing graphviz: %w", err)
	}
	defer g.Close()

	graph, err := graphviz.ParseBytes([]byte(dotSource))
	if err != nil {
		return nil, fmt.Errorf("error parsing mind map source: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("error rendering mind map PNG: %w", err)
	}

	return buf.Bytes(), nil
}
