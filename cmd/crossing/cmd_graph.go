package main

import (
	"fmt"
	"io"
	"os"

	"github.com/anggasct/crossing/pkg/route"
	"github.com/anggasct/crossing/visualization"
	"github.com/spf13/cobra"
)

type graphOptions struct {
	compatible bool
	flat       bool
	svg        bool
	output     string
	highlight  []string
}

func newGraphCmd() *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the route conflict graph in Graphviz DOT",
		Long: `graph draws the twelve routes through the intersection and connects every
pair that may not be inside together. With --compatible it connects the
pairs that may share the intersection instead.`,
		Example: `  crossing graph | dot -Tpng > conflicts.png
  crossing graph --highlight n->s --highlight s->n --svg -o inside.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderGraph(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.compatible, "compatible", false, "draw compatible pairs instead of conflicts")
	f.BoolVar(&opts.flat, "flat", false, "do not cluster routes by origin")
	f.BoolVar(&opts.svg, "svg", false, "render SVG through the Graphviz dot binary")
	f.StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	f.StringSliceVar(&opts.highlight, "highlight", nil, "mark routes as inside, e.g. w->s")

	return cmd
}

func renderGraph(w io.Writer, opts *graphOptions) error {
	dotOpts := visualization.DefaultDOTOptions()
	dotOpts.ShowConflicts = !opts.compatible
	dotOpts.ShowCompatible = opts.compatible
	dotOpts.GroupByOrigin = !opts.flat
	if opts.flat {
		dotOpts.Layout = "circo"
	}

	for _, s := range opts.highlight {
		r, err := route.ParseRoute(s)
		if err != nil {
			return err
		}
		dotOpts.Highlight = append(dotOpts.Highlight, r)
	}

	generator := visualization.NewDOTGenerator(dotOpts)

	if opts.output != "" && !opts.svg {
		return generator.GenerateToFile(opts.output)
	}

	var (
		content string
		err     error
	)
	if opts.svg {
		content, err = generator.GenerateSVG()
	} else {
		content, err = generator.Generate()
	}
	if err != nil {
		return err
	}

	if opts.output != "" {
		return os.WriteFile(opts.output, []byte(content), 0644)
	}
	_, err = fmt.Fprint(w, content)
	return err
}
