package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
)

// Generator is the external text-generation capability used for
// quality analysis.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// Analyzer scores a masked transcript for service quality with an LLM,
// trying each candidate model once in order.
type Analyzer struct {
	gen     Generator
	models  []string
	timeout time.Duration
	logger  *zap.Logger
}

func NewAnalyzer(gen Generator, models []string, timeout time.Duration, logger *zap.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Analyzer{
		gen:     gen,
		models:  models,
		timeout: timeout,
		logger:  logger,
	}
}

// Analyze produces a summary and quality scores for the transcript.
// Unlike masking there is no deterministic fallback: when every
// candidate fails the error surfaces and the call is marked failed,
// with the stored transcript left intact.
func (a *Analyzer) Analyze(ctx context.Context, t *entities.Transcript) (*entities.Analysis, error) {
	if a.gen == nil || len(a.models) == 0 {
		return nil, fmt.Errorf("no analysis models configured")
	}

	prompt := buildAnalysisPrompt(t)

	var lastErr error
	for _, model := range a.models {
		result, err := a.tryModel(ctx, model, prompt)
		if err != nil {
			lastErr = err
			if a.logger != nil {
				a.logger.Warn("analysis model attempt failed, trying next candidate",
					zap.String("model", model),
					zap.Error(err),
				)
			}
			continue
		}

		return &entities.Analysis{
			Summary:         result.Summary,
			PolitenessScore: clampScore(result.PolitenessScore),
			ResolutionScore: clampScore(result.ResolutionScore),
			ComplianceScore: clampScore(result.ComplianceScore),
			ModelUsed:       model,
			CreatedAt:       time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("all analysis model candidates failed: %w", lastErr)
}

func (a *Analyzer) tryModel(ctx context.Context, model, prompt string) (*entities.AnalysisResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.gen.GenerateText(attemptCtx, model, prompt)
	if err != nil {
		return nil, err
	}

	return parseAnalysisResult(out)
}

// parseAnalysisResult decodes the JSON response, tolerating markdown
// code blocks the model may wrap around it.
func parseAnalysisResult(content string) (*entities.AnalysisResult, error) {
	content = extractJSON(content)

	var result entities.AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("missing summary in response")
	}

	return &result, nil
}

// extractJSON strips markdown code fences from the model output
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func buildAnalysisPrompt(t *entities.Transcript) string {
	var sb strings.Builder
	sb.WriteString("You are a call-center quality analyst. The transcript below is a ")
	sb.WriteString("customer support call with personal data already replaced by ")
	sb.WriteString("placeholder tokens.\n\n")
	sb.WriteString("Return ONLY a JSON object with these fields:\n")
	sb.WriteString(`- "summary": 2-4 sentence summary of the call in the transcript language` + "\n")
	sb.WriteString(`- "politeness_score": 0-100, how polite and professional the agent was` + "\n")
	sb.WriteString(`- "resolution_score": 0-100, how completely the customer's issue was resolved` + "\n")
	sb.WriteString(`- "compliance_score": 0-100, adherence to greeting, identification and closing procedure` + "\n\n")
	sb.WriteString("Transcript:\n")

	if len(t.Segments) > 0 {
		for _, seg := range t.Segments {
			sb.WriteString(fmt.Sprintf("[%s]: %s\n", seg.Speaker, seg.Text))
		}
	} else {
		sb.WriteString(t.Text)
	}

	return sb.String()
}
