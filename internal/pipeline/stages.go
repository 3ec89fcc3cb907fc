package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ampliflow/internal/config"
	"ampliflow/internal/logging"
	"ampliflow/internal/services"
	"ampliflow/internal/services/qiime"
)

// Invoker runs a qiime action. *qiime.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, action qiime.Action, dir string) (qiime.Outputs, error)
}

// importedSequences names the artifact produced from raw EMP reads.
const importedSequences = "emp_sequences"

// runState is the mutable state threaded through the stages of one run.
type runState struct {
	qiime   Invoker
	params  config.QiimeParams
	data    config.Data
	workDir string
	results *Results
	logger  *slog.Logger
}

type stageFunc func(ctx context.Context, r *runState) error

var stageFuncs = map[string]stageFunc{
	config.StageImport:                runImport,
	config.StageMetadataValidation:    runMetadataValidation,
	config.StageDemux:                 runDemux,
	config.StageDenoise:               runDenoise,
	config.StagePhylogeny:             runPhylogeny,
	config.StageDiversity:             runDiversity,
	config.StageAlphaRarefaction:      runAlphaRarefaction,
	config.StageTaxonomy:              runTaxonomy,
	config.StageDifferentialAbundance: runDifferentialAbundance,
}

// invoke runs one qiime action in the work directory and records its outputs.
func (r *runState) invoke(ctx context.Context, action qiime.Action) error {
	outputs, err := r.qiime.Invoke(ctx, action, r.workDir)
	if err != nil {
		return err
	}
	stage, _ := services.StageFromContext(ctx)
	r.results.Add(stage, outputs)
	names := make([]string, 0, len(outputs))
	for _, entity := range outputs {
		names = append(names, entity.Name)
	}
	logging.WithContext(ctx, r.logger).Info(
		"qiime "+action.Command()+" finished",
		logging.String(logging.FieldEventType, "qiime_action"),
		logging.String("results", strings.Join(names, ", ")),
	)
	return nil
}

// input resolves a previously produced entity for the current stage.
func (r *runState) input(ctx context.Context, name string) (string, error) {
	path, err := r.results.Path(name)
	if err != nil {
		stage, _ := services.StageFromContext(ctx)
		return "", services.Wrap(services.ErrConfiguration, stage, "resolve input", err.Error(), nil)
	}
	return path, nil
}

// sequences returns the multiplexed sequences artifact: the imported one
// when import ran, otherwise the configured file.
func (r *runState) sequences() string {
	if path, err := r.results.Path(importedSequences); err == nil {
		return path
	}
	return r.data.SequencesPath()
}

// skipReason reports a runtime reason to skip an enabled stage.
func (r *runState) skipReason(stage string) string {
	if stage == config.StageImport {
		if info, err := os.Stat(r.data.SequencesPath()); err == nil && info.Size() > 0 {
			return "sequences artifact already exists"
		}
	}
	return ""
}

func runImport(ctx context.Context, r *runState) error {
	raw := r.params.DemuxParams.Params.DemuxParams.DemuxSeq
	info, err := os.Stat(raw)
	if err != nil || !info.IsDir() {
		return services.Wrap(services.ErrNotFound, config.StageImport, "import reads",
			fmt.Sprintf("raw reads directory %s not found", raw), err)
	}
	return r.invoke(ctx, qiime.ImportEMPSingle(raw, importedSequences))
}

func runMetadataValidation(ctx context.Context, r *runState) error {
	path := r.data.SampleMetadataPath()
	columns, err := readMetadataColumns(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, config.StageMetadataValidation, "read metadata",
			fmt.Sprintf("sample metadata %s is not valid", path), err)
	}

	var required []string
	if r.params.DemuxParams.RunDemux {
		required = append(required, r.data.BarcodeColumn)
	}
	if (r.params.DiversityParams.RunDiversity && len(r.params.DiversityParams.Params.BetaMetrics.Enabled()) > 0) ||
		r.params.DifferentialParams.RunAncombc {
		required = append(required, r.data.GroupingField)
	}
	if missing := missingColumns(columns, required...); len(missing) > 0 {
		return services.Wrap(services.ErrValidation, config.StageMetadataValidation, "check metadata columns",
			fmt.Sprintf("sample metadata is missing column(s): %s", strings.Join(missing, ", ")), nil)
	}
	logging.WithContext(ctx, r.logger).Info("sample metadata validated",
		logging.String(logging.FieldEventType, "metadata_validated"),
		logging.Int("columns", len(columns)),
	)

	if !r.params.ValidationParams.ShowMetadata {
		return nil
	}
	return r.invoke(ctx, qiime.MetadataTabulate("metadata_viz", path))
}

func runDemux(ctx context.Context, r *runState) error {
	if err := r.invoke(ctx, qiime.DemuxEmpSingle(r.sequences(), r.data.SampleMetadataPath(), r.data.BarcodeColumn)); err != nil {
		return err
	}
	demux, err := r.input(ctx, "demux")
	if err != nil {
		return err
	}
	return r.invoke(ctx, qiime.DemuxSummarize(demux))
}

func runDenoise(ctx context.Context, r *runState) error {
	demux, err := r.input(ctx, "demux")
	if err != nil {
		return err
	}
	if r.params.DeblurParams.RunDeblur {
		return runDeblur(ctx, r, demux)
	}

	p := r.params.Dada2Params.Params
	if err := r.invoke(ctx, qiime.Dada2DenoiseSingle(demux, qiime.Dada2Options{
		TrimLeft: p.TrimLeft,
		TruncLen: p.TruncLen,
		MaxEE:    p.MaxEE,
		TruncQ:   p.TruncQ,
		NThreads: p.NThreads,
	})); err != nil {
		return err
	}
	stats, err := r.input(ctx, "stats")
	if err != nil {
		return err
	}
	return r.invoke(ctx, qiime.MetadataTabulate("stats_viz", stats))
}

func runDeblur(ctx context.Context, r *runState, demux string) error {
	minQuality := r.params.DemuxParams.Params.DemuxParams.DemuxTruncQ
	if err := r.invoke(ctx, qiime.QualityFilterQScore(demux, minQuality)); err != nil {
		return err
	}
	filtered, err := r.input(ctx, "demux_filtered")
	if err != nil {
		return err
	}
	p := r.params.DeblurParams.DeblurParams
	if err := r.invoke(ctx, qiime.DeblurDenoise16S(filtered, qiime.DeblurOptions{
		TrimLength: p.TrimLength,
		MinReads:   p.MinReads,
		MinSize:    p.MinSize,
	})); err != nil {
		return err
	}
	stats, err := r.input(ctx, "stats")
	if err != nil {
		return err
	}
	return r.invoke(ctx, qiime.DeblurVisualizeStats(stats))
}

func runPhylogeny(ctx context.Context, r *runState) error {
	repSeqs, err := r.input(ctx, "rep_seqs")
	if err != nil {
		return err
	}
	p := r.params.PhylogenyParams.Params
	return r.invoke(ctx, qiime.AlignToTreeMafftFasttree(repSeqs, qiime.PhylogenyOptions{
		NThreads:        max(p.MafftParams.NThreads, p.FasttreeParams.NThreads),
		MinConservation: p.MaskParams.MinConservation,
	}))
}

func runDiversity(ctx context.Context, r *runState) error {
	table, err := r.input(ctx, "table")
	if err != nil {
		return err
	}
	tree, err := r.input(ctx, "rooted_tree")
	if err != nil {
		return err
	}
	metadata := r.data.SampleMetadataPath()
	p := r.params.DiversityParams.Params
	if err := r.invoke(ctx, qiime.CoreMetricsPhylogenetic(table, tree, metadata, p.SamplingDepth)); err != nil {
		return err
	}

	for _, metric := range p.AlphaMetrics.Enabled() {
		vector, err := r.input(ctx, qiime.CoreAlphaVectors[metric])
		if err != nil {
			return err
		}
		if err := r.invoke(ctx, qiime.AlphaGroupSignificance(vector, metadata, metric)); err != nil {
			return err
		}
	}
	for _, metric := range p.BetaMetrics.Enabled() {
		matrix, err := r.input(ctx, qiime.CoreDistanceMatrices[metric])
		if err != nil {
			return err
		}
		if err := r.invoke(ctx, qiime.BetaGroupSignificance(matrix, metadata, metric, qiime.BetaOptions{
			Column:       r.data.GroupingField,
			Permutations: p.BetaGroupSignificance.Permutations,
			Pairwise:     p.BetaGroupSignificance.Pairwise,
		})); err != nil {
			return err
		}
	}
	return nil
}

func runAlphaRarefaction(ctx context.Context, r *runState) error {
	table, err := r.input(ctx, "table")
	if err != nil {
		return err
	}
	tree, err := r.input(ctx, "rooted_tree")
	if err != nil {
		return err
	}
	p := r.params.AlphaRarefactionParams.Params
	return r.invoke(ctx, qiime.AlphaRarefaction(table, tree, r.data.SampleMetadataPath(), qiime.RarefactionOptions{
		MinDepth:   p.MinDepth,
		MaxDepth:   p.MaxDepth,
		Steps:      p.Steps,
		Iterations: p.Iterations,
	}))
}

func runTaxonomy(ctx context.Context, r *runState) error {
	repSeqs, err := r.input(ctx, "rep_seqs")
	if err != nil {
		return err
	}
	classifier := r.data.ClassifierArtifactPath()
	if info, statErr := os.Stat(classifier); statErr != nil || info.Size() == 0 {
		return services.Wrap(services.ErrNotFound, config.StageTaxonomy, "locate classifier",
			fmt.Sprintf("classifier %s not found", classifier), statErr)
	}
	if err := r.invoke(ctx, qiime.ClassifySklearn(classifier, repSeqs)); err != nil {
		return err
	}
	taxonomy, err := r.input(ctx, "taxonomy")
	if err != nil {
		return err
	}
	if err := r.invoke(ctx, qiime.MetadataTabulate("taxonomy_viz", taxonomy)); err != nil {
		return err
	}
	table, err := r.input(ctx, "table")
	if err != nil {
		return err
	}
	return r.invoke(ctx, qiime.TaxaBarplot(table, taxonomy, r.data.SampleMetadataPath()))
}

func runDifferentialAbundance(ctx context.Context, r *runState) error {
	table, err := r.input(ctx, "table")
	if err != nil {
		return err
	}
	if level := r.data.CollapseLevel; level > 0 {
		taxonomy, err := r.input(ctx, "taxonomy")
		if err != nil {
			return err
		}
		if err := r.invoke(ctx, qiime.TaxaCollapse(table, taxonomy, level)); err != nil {
			return err
		}
		if table, err = r.input(ctx, "collapsed_table"); err != nil {
			return err
		}
	}
	if err := r.invoke(ctx, qiime.Ancombc(table, r.data.SampleMetadataPath(), r.data.GroupingField)); err != nil {
		return err
	}
	differentials, err := r.input(ctx, "diff_abundance")
	if err != nil {
		return err
	}
	return r.invoke(ctx, qiime.DABarplot(differentials))
}
