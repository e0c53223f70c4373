package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/crossing/pkg/route"
)

// DOTGenerator generates Graphviz DOT format representations of the route
// conflict graph: one node per route and one edge per pair of routes
type DOTGenerator struct {
	matrix  *route.Matrix
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	// ShowConflicts draws an edge between routes that collide
	ShowConflicts bool
	// ShowCompatible draws an edge between distinct routes that may coexist
	ShowCompatible bool
	// GroupByOrigin clusters routes by the side they start from. Only the
	// dot and fdp layouts draw clusters; other layouts get a flat graph.
	GroupByOrigin bool
	Layout        string // "dot", "fdp", "neato", "circo"
	NodeShape     string
	ConflictColor string
	CompatColor   string
	// Highlight marks routes currently inside the intersection
	Highlight []route.Route
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowConflicts:  true,
		ShowCompatible: false,
		GroupByOrigin:  true,
		Layout:         "dot",
		NodeShape:      "box",
		ConflictColor:  "red",
		CompatColor:    "darkgreen",
	}
}

// NewDOTGenerator creates a new DOT generator
func NewDOTGenerator(options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		matrix:  route.ConflictMatrix(),
		options: opts,
	}
}

// Generate creates a DOT representation of the conflict graph
func (g *DOTGenerator) Generate() (string, error) {
	if !g.options.ShowConflicts && !g.options.ShowCompatible {
		return "", fmt.Errorf("nothing to draw: enable conflicts or compatible edges")
	}

	var dot strings.Builder

	dot.WriteString("graph Intersection {\n")
	if g.options.Layout != "" {
		dot.WriteString(fmt.Sprintf("  layout=%s;\n", g.options.Layout))
	}
	dot.WriteString(fmt.Sprintf("  node [shape=%s style=filled];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	g.generateRoutes(&dot)
	g.generateEdges(&dot)

	dot.WriteString("}\n")

	return dot.String(), nil
}

// generateRoutes generates DOT nodes for all routes
func (g *DOTGenerator) generateRoutes(dot *strings.Builder) {
	highlighted := make(map[route.Route]bool, len(g.options.Highlight))
	for _, r := range g.options.Highlight {
		highlighted[r] = true
	}

	dot.WriteString("  // Routes\n")

	clusters := g.clusters()
	all := route.All()
	for o := route.Direction(0); o < route.NumDirections; o++ {
		indent := "  "
		if clusters {
			dot.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n    label=\"from %s\";\n", o, o))
			indent = "    "
		}
		for _, r := range all {
			if r.Origin == o {
				g.generateRouteNode(dot, indent, r, highlighted[r])
			}
		}
		if clusters {
			dot.WriteString("  }\n")
		}
	}
}

// clusters reports whether routes are grouped in subgraphs the layout
// engine will honour
func (g *DOTGenerator) clusters() bool {
	if !g.options.GroupByOrigin {
		return false
	}
	switch g.options.Layout {
	case "", "dot", "fdp":
		return true
	default:
		return false
	}
}

// generateRouteNode generates a DOT node for a single route
func (g *DOTGenerator) generateRouteNode(dot *strings.Builder, indent string, r route.Route, highlighted bool) {
	fillColor := turnColor(r.Turn())
	label := fmt.Sprintf("%s\\n(%s)", r, r.Turn())

	penWidth := 1
	if highlighted {
		penWidth = 3
		label += "\\n[inside]"
	}

	dot.WriteString(fmt.Sprintf("%s\"%s\" [fillcolor=%s penwidth=%d label=\"%s\"];\n",
		indent, r, fillColor, penWidth, label))
}

// generateEdges generates one edge per unordered pair of distinct routes
func (g *DOTGenerator) generateEdges(dot *strings.Builder) {
	all := route.All()

	dot.WriteString("\n  // Pairs\n")

	for i, a := range all {
		for _, b := range all[i+1:] {
			coexist := g.matrix.MayCoexist(a, b)
			switch {
			case !coexist && g.options.ShowConflicts:
				dot.WriteString(fmt.Sprintf("  \"%s\" -- \"%s\" [color=%s];\n", a, b, g.options.ConflictColor))
			case coexist && g.options.ShowCompatible:
				dot.WriteString(fmt.Sprintf("  \"%s\" -- \"%s\" [color=%s style=dashed];\n", a, b, g.options.CompatColor))
			}
		}
	}
}

func turnColor(t route.Turn) string {
	switch t {
	case route.Right:
		return "lightgreen"
	case route.Straight:
		return "lightblue"
	case route.Left:
		return "lightyellow"
	default:
		return "white"
	}
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(options...),
	}
}

// Generate creates an SVG representation of the conflict graph
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the conflict graph
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g}
	return svgGen.Generate()
}
