package pipeline

import (
	"fmt"

	"ampliflow/internal/services/qiime"
)

// Results holds the named entities produced so far in production order.
// A later entity with the same name replaces the earlier one.
type Results struct {
	order  []string
	byName map[string]qiime.Entity
	stages map[string]string
}

func newResults() *Results {
	return &Results{byName: make(map[string]qiime.Entity), stages: make(map[string]string)}
}

// Add records the outputs of one invocation made by stage.
func (r *Results) Add(stage string, outputs qiime.Outputs) {
	for _, entity := range outputs {
		if _, exists := r.byName[entity.Name]; !exists {
			r.order = append(r.order, entity.Name)
		}
		r.byName[entity.Name] = entity
		r.stages[entity.Name] = stage
	}
}

// Path returns the file path of the named entity or an error naming the
// missing result.
func (r *Results) Path(name string) (string, error) {
	entity, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("result %q has not been produced", name)
	}
	return entity.Path, nil
}

// Stage returns the stage that produced the named entity.
func (r *Results) Stage(name string) string {
	return r.stages[name]
}

// Entities returns every entity in production order.
func (r *Results) Entities() []qiime.Entity {
	out := make([]qiime.Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
