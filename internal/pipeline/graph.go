package pipeline

import (
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"ampliflow/internal/config"
	"ampliflow/internal/stageexec"
)

// Graph is the stage dependency DAG for one set of parameters.
type Graph struct {
	g     graph.Graph[string, string]
	order []string
}

// NewGraph builds the stage DAG. Disabled stages stay in the graph so the
// rendered picture shows the whole pipeline.
func NewGraph(params config.QiimeParams, collapseLevel int) (*Graph, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles())
	order := config.StageOrder()

	for _, stage := range order {
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("label", stageexec.StageLabel(stage)),
		}
		if params.StageEnabled(stage) {
			attrs = append(attrs, graph.VertexAttribute("style", "filled"), graph.VertexAttribute("fillcolor", "lightblue"))
		} else {
			attrs = append(attrs, graph.VertexAttribute("style", "dashed"))
		}
		if err := g.AddVertex(stage, attrs...); err != nil {
			return nil, fmt.Errorf("add stage %s: %w", stage, err)
		}
	}

	deps := config.StageDependencies(collapseLevel)
	for _, stage := range order {
		for _, dep := range deps[stage] {
			if err := g.AddEdge(dep, stage); err != nil {
				return nil, fmt.Errorf("add dependency %s -> %s: %w", dep, stage, err)
			}
		}
	}
	// Imported reads feed demux when present.
	if err := g.AddEdge(config.StageImport, config.StageDemux, graph.EdgeAttribute("style", "dashed")); err != nil {
		return nil, fmt.Errorf("add dependency %s -> %s: %w", config.StageImport, config.StageDemux, err)
	}

	pg := &Graph{g: g, order: order}
	if err := pg.verifyOrder(); err != nil {
		return nil, err
	}
	return pg, nil
}

// verifyOrder checks that the fixed execution order is a topological order
// of the graph: every dependency runs before its dependents.
func (pg *Graph) verifyOrder() error {
	if _, err := graph.TopologicalSort(pg.g); err != nil {
		return fmt.Errorf("sort stages: %w", err)
	}
	rank := make(map[string]int, len(pg.order))
	for i, stage := range pg.order {
		rank[stage] = i
	}
	edges, err := pg.g.Edges()
	if err != nil {
		return fmt.Errorf("list stage dependencies: %w", err)
	}
	for _, edge := range edges {
		if rank[edge.Source] >= rank[edge.Target] {
			return fmt.Errorf("stage order runs %s before its dependency %s", edge.Target, edge.Source)
		}
	}
	return nil
}

// Order returns the stage names in execution order.
func (pg *Graph) Order() []string {
	return append([]string(nil), pg.order...)
}

// Dependencies returns the direct prerequisites of stage in execution order.
func (pg *Graph) Dependencies(stage string) ([]string, error) {
	predecessors, err := pg.g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	incoming, ok := predecessors[stage]
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	var deps []string
	for _, candidate := range pg.order {
		if _, ok := incoming[candidate]; ok {
			deps = append(deps, candidate)
		}
	}
	return deps, nil
}

// DOT renders the graph in Graphviz DOT format.
func (pg *Graph) DOT(w io.Writer) error {
	return draw.DOT(pg.g, w, draw.GraphAttribute("rankdir", "LR"), draw.GraphAttribute("label", "ampliflow stages"))
}
