package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable. Every returned error wraps
// ErrInvalid.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateQiime(); err != nil {
		return err
	}
	for _, name := range c.ActionNames() {
		if err := validateAction(name, c.Actions[name], c.QiimeParams); err != nil {
			return err
		}
	}
	return c.QiimeParams.validate()
}

func (c *Config) validateLogging() error {
	if err := validLevel("logging.level", c.Logging.Level); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(StageOrder()))
	for _, stage := range StageOrder() {
		known[stage] = struct{}{}
	}
	stages := make([]string, 0, len(c.Logging.StageOverrides))
	for stage := range c.Logging.StageOverrides {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		if _, ok := known[stage]; !ok {
			return fmt.Errorf("logging.stage_overrides: unknown stage %q (want one of %s)", stage, strings.Join(StageOrder(), ", "))
		}
		if err := validLevel("logging.stage_overrides."+stage, c.Logging.StageOverrides[stage]); err != nil {
			return err
		}
	}
	return nil
}

func validLevel(field, level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("%s: unsupported value %q", field, level)
	}
}

func (c *Config) validateQiime() error {
	if c.Qiime.ActionTimeout < 0 {
		return errors.New("qiime.action_timeout must be >= 0 (seconds, 0 disables)")
	}
	return nil
}

func validateAction(name string, action Action, params QiimeParams) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("actions: action name must not be empty")
	}
	prefix := "actions." + name + ".data"
	data := action.Data

	if action.DownloadData {
		targets := 0
		for _, pair := range []struct{ field, rawURL, path, pathField string }{
			{"data_url", data.DataURL, data.DataPath, "data_path"},
			{"metadata_url", data.MetadataURL, data.MetadataPath, "metadata_path"},
			{"classifier_url", data.ClassifierURL, data.ClassifierPath, "classifier_path"},
		} {
			if pair.rawURL == "" {
				continue
			}
			targets++
			if err := validateURL(pair.rawURL); err != nil {
				return fmt.Errorf("%s.%s: %w", prefix, pair.field, err)
			}
			if pair.path == "" {
				return fmt.Errorf("%s.%s must be set when %s is set", prefix, pair.pathField, pair.field)
			}
		}
		if targets == 0 {
			return fmt.Errorf("actions.%s: download_data is true but no data_url, metadata_url, or classifier_url is set", name)
		}
	}

	if action.RunBasicPipeline {
		if data.DataSource == "" {
			return fmt.Errorf("%s.data_source must be set when run_basic_pipeline is true", prefix)
		}
		if data.QzaSequences == "" {
			return fmt.Errorf("%s.qza_sequences must be set when run_basic_pipeline is true", prefix)
		}
		if data.Metadata == "" {
			return fmt.Errorf("%s.metadata must be set when run_basic_pipeline is true", prefix)
		}
		if params.TaxonomyParams.RunTaxonomy && data.Classifier == "" {
			return fmt.Errorf("%s.classifier must be set when taxonomy_params.run_taxonomy is true", prefix)
		}
		if data.OutputDir == "" {
			return fmt.Errorf("%s.output_dir could not be resolved", prefix)
		}
	}
	if data.CollapseLevel < 0 || data.CollapseLevel > 7 {
		return fmt.Errorf("%s.collapse_level must be between 0 and 7", prefix)
	}
	if action.RunBasicPipeline {
		if err := params.CheckStageDependencies(data.CollapseLevel); err != nil {
			return fmt.Errorf("actions.%s: %w", name, err)
		}
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (want http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func (p QiimeParams) validate() error {
	switch p.DemuxParams.Params.DemuxMethod {
	case "emp-single":
	default:
		return fmt.Errorf("qiime_params.demux_params.params.demux_method: unsupported value %q (want emp-single)", p.DemuxParams.Params.DemuxMethod)
	}

	if err := ensureNonNegative(map[string]float64{
		"qiime_params.demux_params.params.demux_params.demux_trunc_len":             float64(p.DemuxParams.Params.DemuxParams.DemuxTruncLen),
		"qiime_params.demux_params.params.demux_params.demux_max_ee":                p.DemuxParams.Params.DemuxParams.DemuxMaxEE,
		"qiime_params.demux_params.params.demux_params.demux_trunc_q":               float64(p.DemuxParams.Params.DemuxParams.DemuxTruncQ),
		"qiime_params.denoise_params.params.trim_left":                              float64(p.DenoiseParams.Params.TrimLeft),
		"qiime_params.denoise_params.params.trim_right":                             float64(p.DenoiseParams.Params.TrimRight),
		"qiime_params.denoise_params.params.trunc_len":                              float64(p.DenoiseParams.Params.TruncLen),
		"qiime_params.denoise_params.params.max_ee":                                 p.DenoiseParams.Params.MaxEE,
		"qiime_params.denoise_params.params.trunc_q":                                float64(p.DenoiseParams.Params.TruncQ),
		"qiime_params.dada2_params.params.trim_left":                                float64(p.Dada2Params.Params.TrimLeft),
		"qiime_params.dada2_params.params.trim_right":                               float64(p.Dada2Params.Params.TrimRight),
		"qiime_params.dada2_params.params.trunc_len":                                float64(p.Dada2Params.Params.TruncLen),
		"qiime_params.dada2_params.params.max_ee":                                   p.Dada2Params.Params.MaxEE,
		"qiime_params.dada2_params.params.trunc_q":                                  float64(p.Dada2Params.Params.TruncQ),
		"qiime_params.dada2_params.params.n_threads":                                float64(p.Dada2Params.Params.NThreads),
		"qiime_params.deblur_params.deblur_params.trim_length":                      float64(p.DeblurParams.DeblurParams.TrimLength),
		"qiime_params.deblur_params.deblur_params.min_reads":                        float64(p.DeblurParams.DeblurParams.MinReads),
		"qiime_params.deblur_params.deblur_params.min_size":                         float64(p.DeblurParams.DeblurParams.MinSize),
		"qiime_params.phylogeny_params.params.mafft_params.n_threads":               float64(p.PhylogenyParams.Params.MafftParams.NThreads),
		"qiime_params.phylogeny_params.params.fasttree_params.n_threads":            float64(p.PhylogenyParams.Params.FasttreeParams.NThreads),
		"qiime_params.diversity_params.params.beta_group_significance.permutations": float64(p.DiversityParams.Params.BetaGroupSignificance.Permutations),
	}); err != nil {
		return err
	}

	if p.DenoiseParams.RunDenoise && p.Dada2Params.RunDada2 == p.DeblurParams.RunDeblur {
		return errors.New("qiime_params: exactly one of dada2_params.run_dada2 and deblur_params.run_deblur must be true when denoise_params.run_denoise is true")
	}
	if p.DeblurParams.RunDeblur && p.DeblurParams.DeblurParams.TrimLength <= 0 {
		return errors.New("qiime_params.deblur_params.deblur_params.trim_length must be positive when run_deblur is true")
	}

	conservation := p.PhylogenyParams.Params.MaskParams.MinConservation
	if conservation < 0 || conservation > 1 {
		return errors.New("qiime_params.phylogeny_params.params.mask_params.min_conservation must be between 0 and 1")
	}

	if p.DiversityParams.RunDiversity && p.DiversityParams.Params.SamplingDepth <= 0 {
		return errors.New("qiime_params.diversity_params.params.sampling_depth must be positive when run_diversity is true")
	}

	if p.AlphaRarefactionParams.RunAlphaRarefaction {
		r := p.AlphaRarefactionParams.Params
		if r.MinDepth < 1 {
			return errors.New("qiime_params.alpha_rarefaction_params.params.min_depth must be >= 1")
		}
		if r.MaxDepth <= r.MinDepth {
			return errors.New("qiime_params.alpha_rarefaction_params.params.max_depth must be greater than min_depth")
		}
		if r.Steps < 2 {
			return errors.New("qiime_params.alpha_rarefaction_params.params.steps must be >= 2")
		}
		if r.Iterations < 1 {
			return errors.New("qiime_params.alpha_rarefaction_params.params.iterations must be >= 1")
		}
	}
	return nil
}

func ensureNonNegative(values map[string]float64) error {
	for _, key := range sortedKeys(values) {
		if values[key] < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]float64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
