// Package engine drives the LLM workflow flows: structured JSONL in,
// structured JSONL out. The pipeline treats an Engine as a black box keyed
// by flow identifier; this implementation runs the flows in-process against
// the LLM client, validating every judgment against its JSON Schema before
// it is persisted.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/llm"
	"github.com/jonathan/jobserp-explorer/internal/prompts"
	"github.com/jonathan/jobserp-explorer/internal/schemas"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// Flow identifies a workflow the engine can run.
type Flow string

const (
	// FlowPageCategorization labels each candidate page with a page type.
	FlowPageCategorization Flow = "page_categorization"
	// FlowRelevanceScoring produces the final relevance judgment per page.
	FlowRelevanceScoring Flow = "relevance_scoring"
)

// Engine is the collaborator interface the orchestrator depends on.
// Invoke consumes the JSONL file at inputPath and returns the path of the
// JSONL output artifact it wrote under outputDir.
type Engine interface {
	Invoke(ctx context.Context, inputPath, outputDir string, flow Flow) (string, error)
}

// Error represents a failure of one engine invocation. Engine failures are
// fatal to their stage; they never corrupt earlier stage outputs.
type Error struct {
	Flow    Flow
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine error in flow %s: %s: %v", e.Flow, e.Message, e.Cause)
	}
	return fmt.Sprintf("engine error in flow %s: %s", e.Flow, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

type flowSpec struct {
	promptKey  string
	schemaName string
	tier       llm.ModelTier
}

var flowSpecs = map[Flow]flowSpec{
	FlowPageCategorization: {
		promptKey:  "page-categorization",
		schemaName: schemas.PageJudgmentSchema,
		tier:       llm.TierLite,
	},
	FlowRelevanceScoring: {
		promptKey:  "relevance-scoring",
		schemaName: schemas.FinalJudgmentSchema,
		tier:       llm.TierStandard,
	},
}

// LLMEngine runs flows against an llm.Client. Each invocation writes its
// output with a unique per-invocation token in the filename, so concurrent
// runs of the same flow can never pick up each other's artifacts.
type LLMEngine struct {
	Client llm.Client
}

// NewLLMEngine returns an engine backed by client.
func NewLLMEngine(client llm.Client) *LLMEngine {
	return &LLMEngine{Client: client}
}

// Invoke runs a flow over every record of the input file. Judgments that
// fail schema validation are quarantined (dropped and counted); a client
// error aborts the invocation. An invocation that produces no valid
// judgment at all is a failure.
func (e *LLMEngine) Invoke(ctx context.Context, inputPath, outputDir string, flow Flow) (string, error) {
	spec, ok := flowSpecs[flow]
	if !ok {
		return "", &Error{Flow: flow, Message: "unknown flow"}
	}

	records, err := jsonl.Read[types.ClassificationInput](inputPath)
	if err != nil {
		return "", &Error{Flow: flow, Message: "failed to read input", Cause: err}
	}
	if len(records) == 0 {
		return "", &Error{Flow: flow, Message: "input file holds no records"}
	}

	template := prompts.MustGet("flows.json", spec.promptKey)

	var pageJudgments []types.PageJudgment
	var finalJudgments []types.FinalJudgment
	quarantined := 0

	for i, record := range records {
		prompt := prompts.Format(template, map[string]string{
			"JobTitle":    record.JobTitle,
			"Company":     record.Company,
			"SerpURL":     record.SerpURL,
			"ScrapedData": record.ScrapedData,
		})

		response, err := e.Client.GenerateJSON(ctx, prompt, spec.tier)
		if err != nil {
			return "", &Error{Flow: flow, Message: fmt.Sprintf("generation failed at line %d", i+1), Cause: err}
		}

		if err := schemas.ValidateDocument(spec.schemaName, response); err != nil {
			quarantined++
			continue
		}

		switch flow {
		case FlowPageCategorization:
			var body struct {
				PageType  string `json:"page_type"`
				Reasoning string `json:"reasoning"`
			}
			if err := json.Unmarshal([]byte(response), &body); err != nil {
				quarantined++
				continue
			}
			pageJudgments = append(pageJudgments, types.PageJudgment{
				LineNumber: i,
				JobIndex:   record.JobIndex,
				QueryUID:   record.QueryUID,
				PageUID:    record.PageUID,
				PageType:   body.PageType,
				Reasoning:  body.Reasoning,
			})
		case FlowRelevanceScoring:
			var body struct {
				RelevanceScore float64 `json:"relevance_score"`
				Verdict        string  `json:"verdict"`
				Reasoning      string  `json:"reasoning"`
			}
			if err := json.Unmarshal([]byte(response), &body); err != nil {
				quarantined++
				continue
			}
			finalJudgments = append(finalJudgments, types.FinalJudgment{
				LineNumber:     i,
				JobIndex:       record.JobIndex,
				QueryUID:       record.QueryUID,
				PageUID:        record.PageUID,
				RelevanceScore: body.RelevanceScore,
				Verdict:        body.Verdict,
				Reasoning:      body.Reasoning,
			})
		}
	}

	if len(pageJudgments) == 0 && len(finalJudgments) == 0 {
		return "", &Error{Flow: flow, Message: fmt.Sprintf("no valid judgments (%d quarantined)", quarantined)}
	}

	outPath := outputPath(inputPath, outputDir, flow)
	switch flow {
	case FlowPageCategorization:
		err = jsonl.Write(outPath, pageJudgments)
	case FlowRelevanceScoring:
		err = jsonl.Write(outPath, finalJudgments)
	}
	if err != nil {
		return "", &Error{Flow: flow, Message: "failed to write output", Cause: err}
	}
	return outPath, nil
}

// outputPath names the artifact after the input stem, the flow and a
// per-invocation token.
func outputPath(inputPath, outputDir string, flow Flow) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	token := uuid.NewString()[:8]
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.jsonl", stem, flow, token))
}
