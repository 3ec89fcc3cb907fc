package qiime

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Kind distinguishes QIIME 2 result types.
type Kind string

const (
	// Artifact is a serialized data object (.qza).
	Artifact Kind = "artifact"
	// Visualization is a serialized report object (.qzv).
	Visualization Kind = "visualization"
)

// Ext returns the file extension QIIME 2 uses for the kind.
func (k Kind) Ext() string {
	if k == Visualization {
		return ".qzv"
	}
	return ".qza"
}

// Output declares one named result of an action.
type Output struct {
	Name string
	Flag string
	Kind Kind
}

// FileName is the name the output is written under.
func (o Output) FileName() string {
	return o.Name + o.Kind.Ext()
}

// Action is one qiime plugin invocation without its output paths.
type Action struct {
	Plugin  string
	Method  string
	Args    []string
	Outputs []Output
}

// Command returns "plugin method" for logs and errors.
func (a Action) Command() string {
	return a.Plugin + " " + a.Method
}

// CommandLine returns the full argument list with outputs written into dir.
func (a Action) CommandLine(dir string) []string {
	args := make([]string, 0, 2+len(a.Args)+2*len(a.Outputs))
	args = append(args, a.Plugin, a.Method)
	args = append(args, a.Args...)
	for _, out := range a.Outputs {
		args = append(args, out.Flag, filepath.Join(dir, out.FileName()))
	}
	return args
}

type argBuilder struct {
	args []string
}

func (b *argBuilder) input(name, path string) *argBuilder {
	b.args = append(b.args, "--i-"+name, path)
	return b
}

func (b *argBuilder) metadata(name, value string) *argBuilder {
	b.args = append(b.args, "--m-"+name, value)
	return b
}

func (b *argBuilder) param(name, value string) *argBuilder {
	b.args = append(b.args, "--p-"+name, value)
	return b
}

func (b *argBuilder) intParam(name string, value int) *argBuilder {
	return b.param(name, strconv.Itoa(value))
}

func (b *argBuilder) floatParam(name string, value float64) *argBuilder {
	return b.param(name, strconv.FormatFloat(value, 'f', -1, 64))
}

func (b *argBuilder) boolParam(name string, value bool) *argBuilder {
	if value {
		b.args = append(b.args, "--p-"+name)
	} else {
		b.args = append(b.args, "--p-no-"+name)
	}
	return b
}

func artifact(name string) Output {
	return Output{Name: name, Flag: "--o-" + flagName(name), Kind: Artifact}
}

func visualization(name string) Output {
	return Output{Name: name, Flag: "--o-visualization", Kind: Visualization}
}

func named(out Output, name string) Output {
	out.Name = name
	return out
}

func flagName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// ImportEMPSingle imports raw EMP single-end reads (sequences.fastq.gz and
// barcodes.fastq.gz in inputDir) as an EMPSingleEndSequences artifact.
func ImportEMPSingle(inputDir, name string) Action {
	return Action{
		Plugin: "tools",
		Method: "import",
		Args:   []string{"--type", "EMPSingleEndSequences", "--input-path", inputDir},
		Outputs: []Output{
			{Name: name, Flag: "--output-path", Kind: Artifact},
		},
	}
}

// DemuxEmpSingle demultiplexes EMP single-end reads by barcode.
func DemuxEmpSingle(seqs, metadataFile, barcodeColumn string) Action {
	b := (&argBuilder{}).
		input("seqs", seqs).
		metadata("barcodes-file", metadataFile).
		metadata("barcodes-column", barcodeColumn)
	return Action{
		Plugin: "demux",
		Method: "emp-single",
		Args:   b.args,
		Outputs: []Output{
			named(artifact("per_sample_sequences"), "demux"),
			named(artifact("error_correction_details"), "demux_details"),
		},
	}
}

// DemuxSummarize renders per-sample read counts and quality plots.
func DemuxSummarize(demux string) Action {
	return Action{
		Plugin:  "demux",
		Method:  "summarize",
		Args:    (&argBuilder{}).input("data", demux).args,
		Outputs: []Output{visualization("demux_summary")},
	}
}

// QualityFilterQScore filters demultiplexed reads by quality score ahead of deblur.
func QualityFilterQScore(demux string, minQuality int) Action {
	b := (&argBuilder{}).input("demux", demux).intParam("min-quality", minQuality)
	return Action{
		Plugin: "quality-filter",
		Method: "q-score",
		Args:   b.args,
		Outputs: []Output{
			named(artifact("filtered_sequences"), "demux_filtered"),
			named(artifact("filter_stats"), "demux_filter_stats"),
		},
	}
}

// Dada2Options are the denoise-single parameters.
type Dada2Options struct {
	TrimLeft int
	TruncLen int
	MaxEE    float64
	TruncQ   int
	NThreads int
}

// Dada2DenoiseSingle denoises single-end reads into a feature table.
func Dada2DenoiseSingle(demux string, opts Dada2Options) Action {
	b := (&argBuilder{}).
		input("demultiplexed-seqs", demux).
		intParam("trim-left", opts.TrimLeft).
		intParam("trunc-len", opts.TruncLen).
		floatParam("max-ee", opts.MaxEE).
		intParam("trunc-q", opts.TruncQ).
		intParam("n-threads", opts.NThreads)
	return Action{
		Plugin: "dada2",
		Method: "denoise-single",
		Args:   b.args,
		Outputs: []Output{
			artifact("table"),
			named(artifact("representative_sequences"), "rep_seqs"),
			named(artifact("denoising_stats"), "stats"),
		},
	}
}

// DeblurOptions are the denoise-16S parameters.
type DeblurOptions struct {
	TrimLength int
	MinReads   int
	MinSize    int
}

// DeblurDenoise16S denoises quality-filtered reads with the 16S positive filter.
func DeblurDenoise16S(filtered string, opts DeblurOptions) Action {
	b := (&argBuilder{}).
		input("demultiplexed-seqs", filtered).
		intParam("trim-length", opts.TrimLength).
		intParam("min-reads", opts.MinReads).
		intParam("min-size", opts.MinSize).
		boolParam("sample-stats", true)
	return Action{
		Plugin: "deblur",
		Method: "denoise-16S",
		Args:   b.args,
		Outputs: []Output{
			named(artifact("representative_sequences"), "rep_seqs"),
			artifact("table"),
			artifact("stats"),
		},
	}
}

// DeblurVisualizeStats renders the per-sample deblur statistics.
func DeblurVisualizeStats(stats string) Action {
	return Action{
		Plugin:  "deblur",
		Method:  "visualize-stats",
		Args:    (&argBuilder{}).input("deblur-stats", stats).args,
		Outputs: []Output{visualization("stats_viz")},
	}
}

// MetadataTabulate renders one or more metadata files or metadata-viewable
// artifacts as a table under the given output name.
func MetadataTabulate(name string, inputs ...string) Action {
	b := &argBuilder{}
	for _, input := range inputs {
		b.metadata("input-file", input)
	}
	return Action{
		Plugin:  "metadata",
		Method:  "tabulate",
		Args:    b.args,
		Outputs: []Output{visualization(name)},
	}
}

// PhylogenyOptions configure align-to-tree-mafft-fasttree.
type PhylogenyOptions struct {
	NThreads        int
	MinConservation float64
}

// AlignToTreeMafftFasttree aligns representative sequences and builds
// unrooted and midpoint-rooted trees.
func AlignToTreeMafftFasttree(repSeqs string, opts PhylogenyOptions) Action {
	b := (&argBuilder{}).
		input("sequences", repSeqs).
		floatParam("mask-min-conservation", opts.MinConservation)
	if opts.NThreads > 0 {
		b.intParam("n-threads", opts.NThreads)
	}
	return Action{
		Plugin: "phylogeny",
		Method: "align-to-tree-mafft-fasttree",
		Args:   b.args,
		Outputs: []Output{
			artifact("alignment"),
			artifact("masked_alignment"),
			named(artifact("tree"), "unrooted_tree"),
			artifact("rooted_tree"),
		},
	}
}

// CoreAlphaVectors maps each alpha metric to its core-metrics vector output.
var CoreAlphaVectors = map[string]string{
	"faith_pd":          "faith_pd_vector",
	"shannon":           "shannon_vector",
	"observed_features": "observed_features_vector",
	"evenness":          "evenness_vector",
}

// CoreDistanceMatrices maps each beta metric to its distance matrix output.
var CoreDistanceMatrices = map[string]string{
	"unweighted_unifrac": "unweighted_unifrac_distance_matrix",
	"weighted_unifrac":   "weighted_unifrac_distance_matrix",
	"jaccard":            "jaccard_distance_matrix",
	"bray_curtis":        "bray_curtis_distance_matrix",
}

var betaMetricOrder = []string{"unweighted_unifrac", "weighted_unifrac", "jaccard", "bray_curtis"}

// CoreMetricsPhylogenetic rarefies the table and computes the standard alpha
// and beta diversity metrics with PCoA and Emperor plots.
func CoreMetricsPhylogenetic(table, rootedTree, metadataFile string, samplingDepth int) Action {
	b := (&argBuilder{}).
		input("phylogeny", rootedTree).
		input("table", table).
		intParam("sampling-depth", samplingDepth).
		metadata("metadata-file", metadataFile)

	outputs := []Output{
		artifact("rarefied_table"),
		artifact("faith_pd_vector"),
		artifact("observed_features_vector"),
		artifact("shannon_vector"),
		artifact("evenness_vector"),
	}
	for _, metric := range betaMetricOrder {
		outputs = append(outputs, artifact(metric+"_distance_matrix"))
	}
	for _, metric := range betaMetricOrder {
		outputs = append(outputs, artifact(metric+"_pcoa_results"))
	}
	for _, metric := range betaMetricOrder {
		name := metric + "_emperor"
		outputs = append(outputs, Output{Name: name, Flag: "--o-" + flagName(name), Kind: Visualization})
	}
	return Action{
		Plugin:  "diversity",
		Method:  "core-metrics-phylogenetic",
		Args:    b.args,
		Outputs: outputs,
	}
}

// AlphaGroupSignificance tests an alpha diversity vector across all
// categorical metadata columns.
func AlphaGroupSignificance(vector, metadataFile, metric string) Action {
	b := (&argBuilder{}).
		input("alpha-diversity", vector).
		metadata("metadata-file", metadataFile)
	return Action{
		Plugin:  "diversity",
		Method:  "alpha-group-significance",
		Args:    b.args,
		Outputs: []Output{visualization(metric + "_significance")},
	}
}

// BetaOptions configure beta-group-significance.
type BetaOptions struct {
	Column       string
	Permutations int
	Pairwise     bool
}

// BetaGroupSignificance runs PERMANOVA on a distance matrix for one metadata column.
func BetaGroupSignificance(distanceMatrix, metadataFile, metric string, opts BetaOptions) Action {
	b := (&argBuilder{}).
		input("distance-matrix", distanceMatrix).
		metadata("metadata-file", metadataFile).
		metadata("metadata-column", opts.Column).
		intParam("permutations", opts.Permutations).
		boolParam("pairwise", opts.Pairwise)
	return Action{
		Plugin:  "diversity",
		Method:  "beta-group-significance",
		Args:    b.args,
		Outputs: []Output{visualization(metric + "_significance")},
	}
}

// RarefactionOptions configure alpha-rarefaction.
type RarefactionOptions struct {
	MinDepth   int
	MaxDepth   int
	Steps      int
	Iterations int
}

// AlphaRarefaction renders rarefaction curves for the feature table.
func AlphaRarefaction(table, rootedTree, metadataFile string, opts RarefactionOptions) Action {
	b := (&argBuilder{}).
		input("table", table).
		input("phylogeny", rootedTree).
		intParam("min-depth", opts.MinDepth).
		intParam("max-depth", opts.MaxDepth).
		intParam("steps", opts.Steps).
		intParam("iterations", opts.Iterations).
		metadata("metadata-file", metadataFile)
	return Action{
		Plugin:  "diversity",
		Method:  "alpha-rarefaction",
		Args:    b.args,
		Outputs: []Output{visualization("alpha_rarefaction")},
	}
}

// ClassifySklearn assigns taxonomy to representative sequences with a
// pre-trained naive Bayes classifier.
func ClassifySklearn(classifier, repSeqs string) Action {
	b := (&argBuilder{}).input("classifier", classifier).input("reads", repSeqs)
	return Action{
		Plugin:  "feature-classifier",
		Method:  "classify-sklearn",
		Args:    b.args,
		Outputs: []Output{named(artifact("classification"), "taxonomy")},
	}
}

// TaxaBarplot renders interactive taxonomy bar plots.
func TaxaBarplot(table, taxonomy, metadataFile string) Action {
	b := (&argBuilder{}).
		input("table", table).
		input("taxonomy", taxonomy).
		metadata("metadata-file", metadataFile)
	return Action{
		Plugin:  "taxa",
		Method:  "barplot",
		Args:    b.args,
		Outputs: []Output{visualization("barplot_viz")},
	}
}

// TaxaCollapse sums feature counts at the given taxonomic level.
func TaxaCollapse(table, taxonomy string, level int) Action {
	b := (&argBuilder{}).
		input("table", table).
		input("taxonomy", taxonomy).
		intParam("level", level)
	return Action{
		Plugin:  "taxa",
		Method:  "collapse",
		Args:    b.args,
		Outputs: []Output{artifact("collapsed_table")},
	}
}

// Ancombc runs ANCOM-BC differential abundance with the given formula.
func Ancombc(table, metadataFile, formula string) Action {
	b := (&argBuilder{}).
		input("table", table).
		metadata("metadata-file", metadataFile).
		param("formula", formula)
	return Action{
		Plugin:  "composition",
		Method:  "ancombc",
		Args:    b.args,
		Outputs: []Output{named(artifact("differentials"), "diff_abundance")},
	}
}

// DABarplot renders ANCOM-BC differentials as a bar plot.
func DABarplot(differentials string) Action {
	return Action{
		Plugin:  "composition",
		Method:  "da-barplot",
		Args:    (&argBuilder{}).input("data", differentials).args,
		Outputs: []Output{visualization("diff_abundance_viz")},
	}
}
