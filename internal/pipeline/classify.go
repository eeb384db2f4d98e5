package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/jobserp-explorer/internal/engine"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// Classify runs the page-categorization flow over the latest
// classification-input dataset. An engine failure is fatal to the stage and
// leaves earlier outputs untouched.
func (p *Pipeline) Classify(ctx context.Context) (*observability.StageReport, error) {
	// A missing engine is a configuration error, not a run failure.
	if p.Engine == nil {
		return nil, fmt.Errorf("no engine configured: set GEMINI_API_KEY or pass --api-key")
	}

	logf, closeLog := p.logger(StageClassify)
	defer closeLog()

	if err := p.setStatus(ctx, runs.StatusClassifying); err != nil {
		return nil, p.fail(ctx, StageClassify, err)
	}

	inPath, err := p.Runs.LatestFile(runs.DirClassInput, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageClassify, fmt.Errorf("no classification input: run export-classify first"))
	}

	logf.Printf("invoking page-categorization flow on %s", inPath)
	outPath, err := p.Engine.Invoke(ctx, inPath, p.Runs.Dir(runs.DirClassified), engine.FlowPageCategorization)
	if err != nil {
		return nil, p.fail(ctx, StageClassify, err)
	}

	judgments, err := jsonl.Read[types.PageJudgment](outPath)
	if err != nil {
		return nil, p.fail(ctx, StageClassify, err)
	}
	logf.Printf("engine produced %d page judgments at %s", len(judgments), outPath)

	report := &observability.StageReport{
		Stage:      StageClassify,
		Attempted:  len(judgments),
		Succeeded:  len(judgments),
		OutputPath: outPath,
	}
	if p.Opts.Verbose {
		p.printer.PrintStageReport(report)
	}
	p.emit(StageClassify, fmt.Sprintf("Categorized %d pages", len(judgments)), nil)
	p.mirror(ctx, logf, runs.StatusClassifying, StageClassify, outPath, len(judgments), judgments)
	return report, nil
}

// FinalScore runs the relevance-scoring flow over the latest final-scoring
// input dataset.
func (p *Pipeline) FinalScore(ctx context.Context) (*observability.StageReport, error) {
	if p.Engine == nil {
		return nil, fmt.Errorf("no engine configured: set GEMINI_API_KEY or pass --api-key")
	}

	logf, closeLog := p.logger(StageFinalScore)
	defer closeLog()

	if err := p.setStatus(ctx, runs.StatusFinalScoring); err != nil {
		return nil, p.fail(ctx, StageFinalScore, err)
	}

	inPath, err := p.Runs.LatestFile(runs.DirFinalInput, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageFinalScore, fmt.Errorf("no final-scoring input: run export-final first"))
	}

	logf.Printf("invoking relevance-scoring flow on %s", inPath)
	outPath, err := p.Engine.Invoke(ctx, inPath, p.Runs.Dir(runs.DirFinalScored), engine.FlowRelevanceScoring)
	if err != nil {
		return nil, p.fail(ctx, StageFinalScore, err)
	}

	judgments, err := jsonl.Read[types.FinalJudgment](outPath)
	if err != nil {
		return nil, p.fail(ctx, StageFinalScore, err)
	}
	logf.Printf("engine produced %d relevance judgments at %s", len(judgments), outPath)
	if p.Opts.Verbose {
		p.printer.PrintJudgments(judgments)
	}

	report := &observability.StageReport{
		Stage:      StageFinalScore,
		Attempted:  len(judgments),
		Succeeded:  len(judgments),
		OutputPath: outPath,
	}
	p.emit(StageFinalScore, fmt.Sprintf("Scored %d pages for relevance", len(judgments)), nil)
	p.mirror(ctx, logf, runs.StatusFinalScoring, StageFinalScore, outPath, len(judgments), judgments)
	return report, nil
}
