// Package render compiles a project timeline into an ffmpeg filter-graph
// pipeline and drives the encoder to produce a single output file.
//
// The graph is modeled as typed stage descriptors and serialized to the
// encoder's textual syntax only at the boundary, which keeps the compositing
// algorithm testable without invoking the external tool.
package render

import (
	"strings"
)

// Arg is one filter parameter. An empty Key emits a positional value.
type Arg struct {
	Key   string
	Value string
}

// Filter is a single named transform with ordered parameters.
type Filter struct {
	Name string
	Args []Arg
}

func (f Filter) serialize(b *strings.Builder) {
	b.WriteString(f.Name)
	for i, arg := range f.Args {
		if i == 0 {
			b.WriteByte('=')
		} else {
			b.WriteByte(':')
		}
		if arg.Key != "" {
			b.WriteString(arg.Key)
			b.WriteByte('=')
		}
		b.WriteString(arg.Value)
	}
}

// Stage is one node of the graph: a filter chain applied to zero or more
// labeled input streams, producing labeled outputs. A stage without inputs is
// a source (e.g. the synthetic color base).
type Stage struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

// Graph is an ordered list of stages forming one -filter_complex expression.
type Graph struct {
	stages []Stage
}

func (g *Graph) Add(stage Stage) {
	g.stages = append(g.stages, stage)
}

// String serializes the graph to ffmpeg filter_complex syntax.
func (g *Graph) String() string {
	var b strings.Builder
	for i, stage := range g.stages {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, in := range stage.Inputs {
			b.WriteByte('[')
			b.WriteString(in)
			b.WriteByte(']')
		}
		for j, f := range stage.Filters {
			if j > 0 {
				b.WriteByte(',')
			}
			f.serialize(&b)
		}
		for _, out := range stage.Outputs {
			b.WriteByte('[')
			b.WriteString(out)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Empty reports whether the graph has no stages.
func (g *Graph) Empty() bool {
	return len(g.stages) == 0
}
