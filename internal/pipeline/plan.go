package pipeline

import (
	"fmt"
	"sort"

	"ampliflow/internal/config"
	"ampliflow/internal/services"
)

// Step is one stage of a planned run.
type Step struct {
	Name    string
	Enabled bool
	// Reason explains why a disabled step is skipped.
	Reason string
	// Dependencies are the direct prerequisites of the stage.
	Dependencies []string
}

// Plan resolves which stages run for the given parameters. An enabled
// stage whose prerequisite is disabled is a configuration error.
func Plan(params config.QiimeParams, data config.Data) ([]Step, error) {
	g, err := NewGraph(params, data.CollapseLevel)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "plan pipeline", "invalid stage graph", err)
	}
	if err := params.CheckStageDependencies(data.CollapseLevel); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "plan pipeline", err.Error(), nil)
	}

	steps := make([]Step, 0, len(g.Order()))
	for _, stage := range g.Order() {
		deps, err := g.Dependencies(stage)
		if err != nil {
			return nil, err
		}
		step := Step{Name: stage, Enabled: params.StageEnabled(stage), Dependencies: deps}
		if !step.Enabled {
			step.Reason = disabledReason(stage)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func disabledReason(stage string) string {
	switch stage {
	case config.StageImport:
		return "demux_seq not configured"
	case config.StageDemux:
		return "run_demux is false"
	case config.StageDenoise:
		return "run_denoise is false"
	case config.StagePhylogeny:
		return "run_phylogeny is false"
	case config.StageDiversity:
		return "run_diversity is false"
	case config.StageAlphaRarefaction:
		return "run_alpha_rarefaction is false"
	case config.StageTaxonomy:
		return "run_taxonomy is false"
	case config.StageDifferentialAbundance:
		return "run_ancombc is false"
	default:
		return "disabled"
	}
}

// StagePlugins returns the qiime plugins a stage invokes with the given parameters.
func StagePlugins(stage string, params config.QiimeParams, data config.Data) []string {
	switch stage {
	case config.StageMetadataValidation:
		if params.ValidationParams.ShowMetadata {
			return []string{"metadata"}
		}
	case config.StageDemux:
		return []string{"demux"}
	case config.StageDenoise:
		if params.DeblurParams.RunDeblur {
			return []string{"quality-filter", "deblur"}
		}
		return []string{"dada2", "metadata"}
	case config.StagePhylogeny:
		return []string{"phylogeny"}
	case config.StageDiversity, config.StageAlphaRarefaction:
		return []string{"diversity"}
	case config.StageTaxonomy:
		return []string{"feature-classifier", "metadata", "taxa"}
	case config.StageDifferentialAbundance:
		if data.CollapseLevel > 0 {
			return []string{"composition", "taxa"}
		}
		return []string{"composition"}
	}
	return nil
}

// RequiredPlugins returns the sorted, de-duplicated plugins the enabled
// stages need.
func RequiredPlugins(params config.QiimeParams, data config.Data) []string {
	seen := make(map[string]struct{})
	for _, stage := range config.StageOrder() {
		if !params.StageEnabled(stage) {
			continue
		}
		for _, plugin := range StagePlugins(stage, params, data) {
			seen[plugin] = struct{}{}
		}
	}
	plugins := make([]string, 0, len(seen))
	for plugin := range seen {
		plugins = append(plugins, plugin)
	}
	sort.Strings(plugins)
	return plugins
}

// Describe renders a one-line summary of a step for CLI listings.
func (s Step) Describe() string {
	if s.Enabled {
		return "enabled"
	}
	return fmt.Sprintf("skipped (%s)", s.Reason)
}
