package config

// QiimeParams holds parameters for every pipeline stage.
type QiimeParams struct {
	ValidationParams       ValidationParams       `toml:"validation_params" yaml:"validation_params"`
	DemuxParams            DemuxParams            `toml:"demux_params" yaml:"demux_params"`
	DenoiseParams          DenoiseParams          `toml:"denoise_params" yaml:"denoise_params"`
	DeblurParams           DeblurParams           `toml:"deblur_params" yaml:"deblur_params"`
	Dada2Params            Dada2Params            `toml:"dada2_params" yaml:"dada2_params"`
	PhylogenyParams        PhylogenyParams        `toml:"phylogeny_params" yaml:"phylogeny_params"`
	DiversityParams        DiversityParams        `toml:"diversity_params" yaml:"diversity_params"`
	AlphaRarefactionParams AlphaRarefactionParams `toml:"alpha_rarefaction_params" yaml:"alpha_rarefaction_params"`
	TaxonomyParams         TaxonomyParams         `toml:"taxonomy_params" yaml:"taxonomy_params"`
	DifferentialParams     DifferentialParams     `toml:"differential_abundance_params" yaml:"differential_abundance_params"`
}

// ValidationParams controls sample metadata inspection.
type ValidationParams struct {
	ShowMetadata bool `toml:"show_metadata" yaml:"show_metadata"`
}

// DemuxParams controls demultiplexing.
type DemuxParams struct {
	RunDemux bool             `toml:"run_demux" yaml:"run_demux"`
	Params   DemuxMethodParam `toml:"params" yaml:"params"`
}

// DemuxMethodParam selects the demultiplexing method and its inputs.
type DemuxMethodParam struct {
	DemuxMethod string        `toml:"demux_method" yaml:"demux_method"`
	DemuxParams DemuxSettings `toml:"demux_params" yaml:"demux_params"`
}

// DemuxSettings names the sequence inputs and read trimming values.
type DemuxSettings struct {
	DemuxSeq      string  `toml:"demux_seq" yaml:"demux_seq"`
	DemuxQual     string  `toml:"demux_qual" yaml:"demux_qual"`
	DemuxBarcode  string  `toml:"demux_barcode" yaml:"demux_barcode"`
	DemuxTruncLen int     `toml:"demux_trunc_len" yaml:"demux_trunc_len"`
	DemuxMaxEE    float64 `toml:"demux_max_ee" yaml:"demux_max_ee"`
	DemuxTruncQ   int     `toml:"demux_trunc_q" yaml:"demux_trunc_q"`
}

// DenoiseSettings are the read trimming values shared by the denoisers.
type DenoiseSettings struct {
	TrimLeft  int     `toml:"trim_left" yaml:"trim_left"`
	TrimRight int     `toml:"trim_right" yaml:"trim_right"`
	TruncLen  int     `toml:"trunc_len" yaml:"trunc_len"`
	MaxEE     float64 `toml:"max_ee" yaml:"max_ee"`
	TruncQ    int     `toml:"trunc_q" yaml:"trunc_q"`
}

// DenoiseParams is the master toggle for the denoising stage.
type DenoiseParams struct {
	RunDenoise bool            `toml:"run_denoise" yaml:"run_denoise"`
	Params     DenoiseSettings `toml:"params" yaml:"params"`
}

// DeblurParams selects Deblur as the denoiser.
type DeblurParams struct {
	RunDeblur    bool           `toml:"run_deblur" yaml:"run_deblur"`
	DeblurParams DeblurSettings `toml:"deblur_params" yaml:"deblur_params"`
}

// DeblurSettings configures deblur denoise-16S.
type DeblurSettings struct {
	TrimLength int `toml:"trim_length" yaml:"trim_length"`
	MinReads   int `toml:"min_reads" yaml:"min_reads"`
	MinSize    int `toml:"min_size" yaml:"min_size"`
}

// Dada2Params selects DADA2 as the denoiser.
type Dada2Params struct {
	RunDada2 bool          `toml:"run_dada2" yaml:"run_dada2"`
	Params   Dada2Settings `toml:"params" yaml:"params"`
}

// Dada2Settings configures dada2 denoise-single.
type Dada2Settings struct {
	TrimLeft  int     `toml:"trim_left" yaml:"trim_left"`
	TrimRight int     `toml:"trim_right" yaml:"trim_right"`
	TruncLen  int     `toml:"trunc_len" yaml:"trunc_len"`
	MaxEE     float64 `toml:"max_ee" yaml:"max_ee"`
	TruncQ    int     `toml:"trunc_q" yaml:"trunc_q"`
	NThreads  int     `toml:"n_threads" yaml:"n_threads"`
}

// PhylogenyParams controls tree construction.
type PhylogenyParams struct {
	RunPhylogeny bool              `toml:"run_phylogeny" yaml:"run_phylogeny"`
	Params       PhylogenySettings `toml:"params" yaml:"params"`
}

// PhylogenySettings configures the mafft/fasttree pipeline.
type PhylogenySettings struct {
	MafftParams    ThreadParams   `toml:"mafft_params" yaml:"mafft_params"`
	MaskParams     MaskParams     `toml:"mask_params" yaml:"mask_params"`
	FasttreeParams FasttreeParams `toml:"fasttree_params" yaml:"fasttree_params"`
}

// ThreadParams carries a thread count.
type ThreadParams struct {
	NThreads int `toml:"n_threads" yaml:"n_threads"`
}

// MaskParams configures alignment masking.
type MaskParams struct {
	MinConservation float64 `toml:"min_conservation" yaml:"min_conservation"`
}

// FasttreeParams configures FastTree.
type FasttreeParams struct {
	NThreads int  `toml:"n_threads" yaml:"n_threads"`
	GTR      bool `toml:"gtr" yaml:"gtr"`
}

// DiversityParams controls core diversity metrics.
type DiversityParams struct {
	RunDiversity bool              `toml:"run_diversity" yaml:"run_diversity"`
	Params       DiversitySettings `toml:"params" yaml:"params"`
}

// DiversitySettings configures core-metrics-phylogenetic and the significance tests.
type DiversitySettings struct {
	SamplingDepth         int                   `toml:"sampling_depth" yaml:"sampling_depth"`
	AlphaMetrics          AlphaMetrics          `toml:"alpha_metrics" yaml:"alpha_metrics"`
	BetaMetrics           BetaMetrics           `toml:"beta_metrics" yaml:"beta_metrics"`
	BetaGroupSignificance BetaGroupSignificance `toml:"beta_group_significance" yaml:"beta_group_significance"`
}

// AlphaMetrics selects alpha vectors tested for group significance.
type AlphaMetrics struct {
	FaithPD          bool `toml:"faith_pd" yaml:"faith_pd"`
	Shannon          bool `toml:"shannon" yaml:"shannon"`
	ObservedFeatures bool `toml:"observed_features" yaml:"observed_features"`
	Evenness         bool `toml:"evenness" yaml:"evenness"`
}

// Enabled returns the selected alpha metric names in a fixed order.
func (a AlphaMetrics) Enabled() []string {
	var names []string
	if a.FaithPD {
		names = append(names, "faith_pd")
	}
	if a.Shannon {
		names = append(names, "shannon")
	}
	if a.ObservedFeatures {
		names = append(names, "observed_features")
	}
	if a.Evenness {
		names = append(names, "evenness")
	}
	return names
}

// BetaMetrics selects distance matrices tested for group significance.
type BetaMetrics struct {
	UnweightedUnifrac bool `toml:"unweighted_unifrac" yaml:"unweighted_unifrac"`
	WeightedUnifrac   bool `toml:"weighted_unifrac" yaml:"weighted_unifrac"`
	Jaccard           bool `toml:"jaccard" yaml:"jaccard"`
	BrayCurtis        bool `toml:"bray_curtis" yaml:"bray_curtis"`
}

// Enabled returns the selected beta metric names in a fixed order.
func (b BetaMetrics) Enabled() []string {
	var names []string
	if b.UnweightedUnifrac {
		names = append(names, "unweighted_unifrac")
	}
	if b.WeightedUnifrac {
		names = append(names, "weighted_unifrac")
	}
	if b.Jaccard {
		names = append(names, "jaccard")
	}
	if b.BrayCurtis {
		names = append(names, "bray_curtis")
	}
	return names
}

// BetaGroupSignificance configures the PERMANOVA test.
type BetaGroupSignificance struct {
	Permutations int  `toml:"permutations" yaml:"permutations"`
	Pairwise     bool `toml:"pairwise" yaml:"pairwise"`
}

// AlphaRarefactionParams controls alpha rarefaction curves.
type AlphaRarefactionParams struct {
	RunAlphaRarefaction bool                     `toml:"run_alpha_rarefaction" yaml:"run_alpha_rarefaction"`
	Params              AlphaRarefactionSettings `toml:"params" yaml:"params"`
}

// AlphaRarefactionSettings configures diversity alpha-rarefaction.
type AlphaRarefactionSettings struct {
	MaxDepth   int `toml:"max_depth" yaml:"max_depth"`
	MinDepth   int `toml:"min_depth" yaml:"min_depth"`
	Steps      int `toml:"steps" yaml:"steps"`
	Iterations int `toml:"iterations" yaml:"iterations"`
}

// TaxonomyParams controls taxonomic classification.
type TaxonomyParams struct {
	RunTaxonomy bool `toml:"run_taxonomy" yaml:"run_taxonomy"`
}

// DifferentialParams controls ANCOM-BC differential abundance testing.
type DifferentialParams struct {
	RunAncombc bool `toml:"run_ancombc" yaml:"run_ancombc"`
}
