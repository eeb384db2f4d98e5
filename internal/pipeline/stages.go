package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/runs"
)

// StageDefinition defines the wiring of one pipeline stage: where its input
// comes from, where its output lands, and which stages must have produced
// output before it can run.
type StageDefinition struct {
	Name         string
	OutputDir    string
	OutputExt    string
	Dependencies []string
}

// StageRegistry holds all stage definitions keyed by name.
var StageRegistry = map[string]StageDefinition{
	StageFetchJobs: {
		Name:      StageFetchJobs,
		OutputDir: runs.DirQuery,
		OutputExt: ".csv",
	},
	StageFetchSerps: {
		Name:         StageFetchSerps,
		OutputDir:    runs.DirExpanded,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageFetchJobs},
	},
	StageScore: {
		Name:         StageScore,
		OutputDir:    runs.DirScored,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageFetchSerps},
	},
	StageExportClass: {
		Name:         StageExportClass,
		OutputDir:    runs.DirClassInput,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageScore},
	},
	StageClassify: {
		Name:         StageClassify,
		OutputDir:    runs.DirClassified,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageExportClass},
	},
	StageScrape: {
		Name:         StageScrape,
		OutputDir:    runs.DirScraped,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageScore},
	},
	StageExportFinal: {
		Name:         StageExportFinal,
		OutputDir:    runs.DirFinalInput,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageScrape},
	},
	StageFinalScore: {
		Name:         StageFinalScore,
		OutputDir:    runs.DirFinalScored,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageExportFinal},
	},
	StageMerge: {
		Name:         StageMerge,
		OutputDir:    runs.DirResults,
		OutputExt:    ".jsonl",
		Dependencies: []string{StageClassify, StageScrape},
	},
}

// StageOrder is the canonical sequencing of the stages.
var StageOrder = []string{
	StageFetchJobs,
	StageFetchSerps,
	StageScore,
	StageExportClass,
	StageClassify,
	StageScrape,
	StageExportFinal,
	StageFinalScore,
	StageMerge,
}

// DependencyError reports which upstream outputs a stage is missing.
type DependencyError struct {
	Stage               string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s is missing dependencies: %v", e.Stage, e.MissingDependencies)
}

// ValidateDependencies checks that every upstream stage of stageName has
// produced output in this run.
func (p *Pipeline) ValidateDependencies(stageName string) error {
	def, ok := StageRegistry[stageName]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stageName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		depDef := StageRegistry[dep]
		if !p.stageHasOutput(depDef.OutputDir, depDef.OutputExt) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &DependencyError{Stage: stageName, MissingDependencies: missing}
	}
	return nil
}

// AvailableStages returns the stages whose dependencies are met and whose
// own output is still missing.
func (p *Pipeline) AvailableStages() []string {
	var available []string
	for _, name := range StageOrder {
		def := StageRegistry[name]
		if p.stageHasOutput(def.OutputDir, def.OutputExt) {
			continue
		}
		if err := p.ValidateDependencies(name); err != nil {
			continue
		}
		available = append(available, name)
	}
	return available
}

// InvokeStage dispatches one stage by name after validating its
// dependencies. FetchJobs needs a search query and is not invocable this
// way; trigger it through its dedicated entry point.
func (p *Pipeline) InvokeStage(ctx context.Context, stageName string) (*observability.StageReport, error) {
	if err := p.ValidateDependencies(stageName); err != nil {
		return nil, err
	}

	switch stageName {
	case StageFetchSerps:
		return p.FetchSerps(ctx)
	case StageScore:
		return p.Score(ctx)
	case StageExportClass:
		return p.ExportClassify(ctx)
	case StageClassify:
		return p.Classify(ctx)
	case StageScrape:
		return p.Scrape(ctx)
	case StageExportFinal:
		return p.ExportFinal(ctx)
	case StageFinalScore:
		return p.FinalScore(ctx)
	case StageMerge:
		return p.Merge(ctx)
	default:
		return nil, fmt.Errorf("stage %s cannot be invoked directly", stageName)
	}
}
