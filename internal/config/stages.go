package config

import "fmt"

// Pipeline stage names in execution order.
const (
	StageImport                = "import"
	StageMetadataValidation    = "metadata_validation"
	StageDemux                 = "demux"
	StageDenoise               = "denoise"
	StagePhylogeny             = "phylogeny"
	StageDiversity             = "diversity"
	StageAlphaRarefaction      = "alpha_rarefaction"
	StageTaxonomy              = "taxonomy"
	StageDifferentialAbundance = "differential_abundance"
)

// StageOrder returns every stage name in execution order.
func StageOrder() []string {
	return []string{
		StageImport,
		StageMetadataValidation,
		StageDemux,
		StageDenoise,
		StagePhylogeny,
		StageDiversity,
		StageAlphaRarefaction,
		StageTaxonomy,
		StageDifferentialAbundance,
	}
}

// StageDependencies maps each stage to the stages whose results it reads.
// Differential abundance reads the taxonomy only when collapsing the
// feature table to a taxonomic level.
func StageDependencies(collapseLevel int) map[string][]string {
	deps := map[string][]string{
		StageImport:                nil,
		StageMetadataValidation:    nil,
		StageDemux:                 {StageMetadataValidation},
		StageDenoise:               {StageDemux},
		StagePhylogeny:             {StageDenoise},
		StageDiversity:             {StageDenoise, StagePhylogeny},
		StageAlphaRarefaction:      {StageDenoise, StagePhylogeny},
		StageTaxonomy:              {StageDenoise},
		StageDifferentialAbundance: {StageDenoise},
	}
	if collapseLevel > 0 {
		deps[StageDifferentialAbundance] = append(deps[StageDifferentialAbundance], StageTaxonomy)
	}
	return deps
}

// StageEnabled reports whether the parameters switch the stage on. Import
// runs whenever raw reads are configured; the pipeline skips it when the
// sequences artifact already exists.
func (p QiimeParams) StageEnabled(stage string) bool {
	switch stage {
	case StageImport:
		return p.DemuxParams.Params.DemuxParams.DemuxSeq != ""
	case StageMetadataValidation:
		return true
	case StageDemux:
		return p.DemuxParams.RunDemux
	case StageDenoise:
		return p.DenoiseParams.RunDenoise
	case StagePhylogeny:
		return p.PhylogenyParams.RunPhylogeny
	case StageDiversity:
		return p.DiversityParams.RunDiversity
	case StageAlphaRarefaction:
		return p.AlphaRarefactionParams.RunAlphaRarefaction
	case StageTaxonomy:
		return p.TaxonomyParams.RunTaxonomy
	case StageDifferentialAbundance:
		return p.DifferentialParams.RunAncombc
	default:
		return false
	}
}

// CheckStageDependencies rejects an enabled stage whose prerequisite is disabled.
func (p QiimeParams) CheckStageDependencies(collapseLevel int) error {
	deps := StageDependencies(collapseLevel)
	for _, stage := range StageOrder() {
		if !p.StageEnabled(stage) {
			continue
		}
		for _, dep := range deps[stage] {
			if !p.StageEnabled(dep) {
				return fmt.Errorf("qiime_params: stage %s is enabled but requires %s, which is disabled", stage, dep)
			}
		}
	}
	return nil
}
