package config

const (
	defaultStateDir            = "~/.local/share/ampliflow"
	defaultLogDir              = "~/.local/share/ampliflow/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultQiimeBinary         = "qiime"
	defaultNotifyTimeout       = 10
	defaultOutputDirName       = "workflow_output"
	defaultBarcodeColumn       = "barcode-sequence"
	defaultGroupingField       = "subject"
	defaultDemuxMethod         = "emp-single"
	defaultTruncLen            = 120
	defaultMaxEE               = 2.0
	defaultTruncQ              = 2
	defaultThreads             = 1
	defaultMinConservation     = 0.4
	defaultDeblurTrimLength    = 120
	defaultDeblurMinReads      = 10
	defaultDeblurMinSize       = 2
	defaultSamplingDepth       = 1103
	defaultPermutations        = 999
	defaultRarefactionMaxDepth = 4000
	defaultRarefactionMinDepth = 1
	defaultRarefactionSteps    = 10
	defaultRarefactionIters    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Qiime: Qiime{
			Binary: defaultQiimeBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		QiimeParams: DefaultQiimeParams(),
	}
}

// DefaultQiimeParams returns stage parameters matching the QIIME 2
// "Moving Pictures" single-end tutorial.
func DefaultQiimeParams() QiimeParams {
	return QiimeParams{
		DemuxParams: DemuxParams{
			RunDemux: true,
			Params: DemuxMethodParam{
				DemuxMethod: defaultDemuxMethod,
				DemuxParams: DemuxSettings{
					DemuxTruncLen: defaultTruncLen,
					DemuxMaxEE:    defaultMaxEE,
					DemuxTruncQ:   defaultTruncQ,
				},
			},
		},
		DenoiseParams: DenoiseParams{
			RunDenoise: true,
			Params: DenoiseSettings{
				TruncLen: defaultTruncLen,
				MaxEE:    defaultMaxEE,
				TruncQ:   defaultTruncQ,
			},
		},
		DeblurParams: DeblurParams{
			DeblurParams: DeblurSettings{
				TrimLength: defaultDeblurTrimLength,
				MinReads:   defaultDeblurMinReads,
				MinSize:    defaultDeblurMinSize,
			},
		},
		Dada2Params: Dada2Params{
			RunDada2: true,
			Params: Dada2Settings{
				TruncLen: defaultTruncLen,
				MaxEE:    defaultMaxEE,
				TruncQ:   defaultTruncQ,
				NThreads: defaultThreads,
			},
		},
		PhylogenyParams: PhylogenyParams{
			RunPhylogeny: true,
			Params: PhylogenySettings{
				MafftParams:    ThreadParams{NThreads: defaultThreads},
				MaskParams:     MaskParams{MinConservation: defaultMinConservation},
				FasttreeParams: FasttreeParams{NThreads: defaultThreads},
			},
		},
		DiversityParams: DiversityParams{
			RunDiversity: true,
			Params: DiversitySettings{
				SamplingDepth: defaultSamplingDepth,
				AlphaMetrics: AlphaMetrics{
					FaithPD:          true,
					Shannon:          true,
					ObservedFeatures: true,
					Evenness:         true,
				},
				BetaMetrics: BetaMetrics{
					UnweightedUnifrac: true,
					WeightedUnifrac:   true,
					Jaccard:           true,
					BrayCurtis:        true,
				},
				BetaGroupSignificance: BetaGroupSignificance{
					Permutations: defaultPermutations,
					Pairwise:     true,
				},
			},
		},
		AlphaRarefactionParams: AlphaRarefactionParams{
			Params: AlphaRarefactionSettings{
				MaxDepth:   defaultRarefactionMaxDepth,
				MinDepth:   defaultRarefactionMinDepth,
				Steps:      defaultRarefactionSteps,
				Iterations: defaultRarefactionIters,
			},
		},
		TaxonomyParams:     TaxonomyParams{RunTaxonomy: true},
		DifferentialParams: DifferentialParams{RunAncombc: true},
	}
}
