package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampliflow/internal/config"
)

func TestGraphOrderMatchesStageOrder(t *testing.T) {
	g, err := NewGraph(config.DefaultQiimeParams(), 0)
	require.NoError(t, err)
	assert.Equal(t, config.StageOrder(), g.Order())
}

func TestGraphDependencies(t *testing.T) {
	g, err := NewGraph(config.DefaultQiimeParams(), 0)
	require.NoError(t, err)

	deps, err := g.Dependencies(config.StageDiversity)
	require.NoError(t, err)
	assert.Equal(t, []string{config.StageDenoise, config.StagePhylogeny}, deps)

	deps, err = g.Dependencies(config.StageDemux)
	require.NoError(t, err)
	assert.Equal(t, []string{config.StageImport, config.StageMetadataValidation}, deps)

	deps, err = g.Dependencies(config.StageDifferentialAbundance)
	require.NoError(t, err)
	assert.Equal(t, []string{config.StageDenoise}, deps)

	_, err = g.Dependencies("bogus")
	assert.Error(t, err)
}

func TestGraphCollapseAddsTaxonomyDependency(t *testing.T) {
	g, err := NewGraph(config.DefaultQiimeParams(), 6)
	require.NoError(t, err)
	deps, err := g.Dependencies(config.StageDifferentialAbundance)
	require.NoError(t, err)
	assert.Equal(t, []string{config.StageDenoise, config.StageTaxonomy}, deps)
}

func TestGraphDOT(t *testing.T) {
	params := config.DefaultQiimeParams()
	g, err := NewGraph(params, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.DOT(&buf))
	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"denoise" -> "phylogeny"`)
	assert.Contains(t, out, "Alpha Rarefaction")
	assert.Contains(t, out, "rankdir")
}

func TestPlanMarksDisabledStages(t *testing.T) {
	params := config.DefaultQiimeParams()
	steps, err := Plan(params, config.Data{})
	require.NoError(t, err)
	require.Len(t, steps, len(config.StageOrder()))

	byName := make(map[string]Step, len(steps))
	for _, step := range steps {
		byName[step.Name] = step
	}
	assert.False(t, byName[config.StageImport].Enabled)
	assert.Equal(t, "demux_seq not configured", byName[config.StageImport].Reason)
	assert.False(t, byName[config.StageAlphaRarefaction].Enabled)
	assert.Equal(t, "skipped (run_alpha_rarefaction is false)", byName[config.StageAlphaRarefaction].Describe())
	assert.True(t, byName[config.StageTaxonomy].Enabled)
	assert.Equal(t, "enabled", byName[config.StageTaxonomy].Describe())
}

func TestPlanRejectsMissingPrerequisite(t *testing.T) {
	params := config.DefaultQiimeParams()
	params.PhylogenyParams.RunPhylogeny = false
	_, err := Plan(params, config.Data{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diversity")
}

func TestRequiredPlugins(t *testing.T) {
	params := config.DefaultQiimeParams()
	assert.Equal(t,
		[]string{"composition", "dada2", "demux", "diversity", "feature-classifier", "metadata", "phylogeny", "taxa"},
		RequiredPlugins(params, config.Data{}),
	)

	params.Dada2Params.RunDada2 = false
	params.DeblurParams.RunDeblur = true
	params.TaxonomyParams.RunTaxonomy = false
	params.DifferentialParams.RunAncombc = false
	assert.Equal(t,
		[]string{"deblur", "demux", "diversity", "phylogeny", "quality-filter"},
		RequiredPlugins(params, config.Data{}),
	)
}
