package main

import (
	"testing"

	"ampliflow/internal/config"
	"ampliflow/internal/testsupport"
)

func TestStagesTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stages"}, env.configPath)
	if err != nil {
		t.Fatalf("stages: %v", err)
	}
	requireContains(t, out, "metadata_validation")
	requireContains(t, out, "differential_abundance")
	requireContains(t, out, "skipped (run_alpha_rarefaction is false)")
	requireContains(t, out, "feature-classifier")
}

func TestStagesDOT(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stages", "--dot"}, env.configPath)
	if err != nil {
		t.Fatalf("stages --dot: %v", err)
	}
	requireContains(t, out, "digraph")
	requireContains(t, out, "rankdir")
	requireContains(t, out, "phylogeny")
}

func TestStagesRejectsBrokenDependencies(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithParams(func(p *config.QiimeParams) {
		p.PhylogenyParams.RunPhylogeny = false
	}))

	if _, _, err := runCLI(t, []string{"stages"}, env.configPath); err == nil {
		t.Fatal("expected diversity without phylogeny to be rejected")
	}
}
