package config

import (
	"errors"
	"fmt"
	"strings"
)

// requiredParams lists every qiime_params key a document must carry once it
// declares the section. taxonomy_params and differential_abundance_params
// are optional and default to enabled.
var requiredParams = []string{
	"validation_params.show_metadata",
	"demux_params.run_demux",
	"demux_params.params.demux_method",
	"demux_params.params.demux_params.demux_seq",
	"demux_params.params.demux_params.demux_qual",
	"demux_params.params.demux_params.demux_barcode",
	"demux_params.params.demux_params.demux_trunc_len",
	"demux_params.params.demux_params.demux_max_ee",
	"demux_params.params.demux_params.demux_trunc_q",
	"denoise_params.run_denoise",
	"denoise_params.params.trim_left",
	"denoise_params.params.trim_right",
	"denoise_params.params.trunc_len",
	"denoise_params.params.max_ee",
	"denoise_params.params.trunc_q",
	"deblur_params.run_deblur",
	"deblur_params.deblur_params.trim_length",
	"deblur_params.deblur_params.min_reads",
	"deblur_params.deblur_params.min_size",
	"dada2_params.run_dada2",
	"dada2_params.params.trim_left",
	"dada2_params.params.trim_right",
	"dada2_params.params.trunc_len",
	"dada2_params.params.max_ee",
	"dada2_params.params.trunc_q",
	"dada2_params.params.n_threads",
	"phylogeny_params.run_phylogeny",
	"phylogeny_params.params.mafft_params.n_threads",
	"phylogeny_params.params.mask_params.min_conservation",
	"phylogeny_params.params.fasttree_params.n_threads",
	"phylogeny_params.params.fasttree_params.gtr",
	"diversity_params.run_diversity",
	"diversity_params.params.sampling_depth",
	"diversity_params.params.alpha_metrics.faith_pd",
	"diversity_params.params.alpha_metrics.shannon",
	"diversity_params.params.alpha_metrics.observed_features",
	"diversity_params.params.alpha_metrics.evenness",
	"diversity_params.params.beta_metrics.unweighted_unifrac",
	"diversity_params.params.beta_metrics.weighted_unifrac",
	"diversity_params.params.beta_metrics.jaccard",
	"diversity_params.params.beta_metrics.bray_curtis",
	"diversity_params.params.beta_group_significance.permutations",
	"diversity_params.params.beta_group_significance.pairwise",
	"alpha_rarefaction_params.run_alpha_rarefaction",
	"alpha_rarefaction_params.params.max_depth",
	"alpha_rarefaction_params.params.min_depth",
	"alpha_rarefaction_params.params.steps",
	"alpha_rarefaction_params.params.iterations",
}

// checkRequiredParams reports the first required qiime_params key missing
// from a decoded document. Documents without qiime_params use defaults.
func checkRequiredParams(doc map[string]any) error {
	raw, ok := doc["qiime_params"]
	if !ok {
		return nil
	}
	params, ok := raw.(map[string]any)
	if !ok {
		return errors.New("qiime_params must be a table")
	}
	for _, key := range requiredParams {
		if !hasKey(params, strings.Split(key, ".")) {
			return fmt.Errorf("qiime_params.%s is required when qiime_params is set", key)
		}
	}
	return nil
}

func hasKey(table map[string]any, path []string) bool {
	value, ok := table[path[0]]
	if !ok {
		return false
	}
	if len(path) == 1 {
		return true
	}
	next, ok := value.(map[string]any)
	return ok && hasKey(next, path[1:])
}
