package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/pkg/config"
)

const narratorSystemPrompt = "You are a clinical operations analyst. Summarize site recommendation results for a trial sponsor in plain prose. State scores and findings as given; do not invent numbers. Three to five sentences."

// Narrator turns a ranked recommendation into narrative text. The core
// engine never talks to a model provider directly; callers inject an
// implementation and may inject Noop to run without one.
type Narrator interface {
	Narrate(ctx context.Context, rec *contracts.Recommendation) (string, error)
}

// NoopNarrator returns no narrative. Used when no API key is configured.
type NoopNarrator struct{}

func (NoopNarrator) Narrate(context.Context, *contracts.Recommendation) (string, error) {
	return "", nil
}

// AnthropicMessager is the slice of the Anthropic client the narrator
// needs, kept narrow for testing.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicNarrator narrates through the Anthropic Messages API, rate
// limited so batch report generation cannot exhaust the quota.
type AnthropicNarrator struct {
	messages  AnthropicMessager
	model     anthropic.Model
	maxTokens int64
	limiter   *rate.Limiter
}

// NewAnthropicNarrator builds a narrator from config. An empty API key
// returns an error; callers fall back to NoopNarrator.
func NewAnthropicNarrator(cfg config.AnthropicConfig) (*AnthropicNarrator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("anthropic api key not configured")
	}

	client := anthropic.NewClient(option.WithAPIKey(key))
	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 20
	}

	return &AnthropicNarrator{
		messages:  &client.Messages,
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}, nil
}

// Narrate renders the recommendation into a prompt and returns the
// model's prose summary.
func (n *AnthropicNarrator) Narrate(ctx context.Context, rec *contracts.Recommendation) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := n.messages.New(ctx, anthropic.MessageNewParams{
		Model:       n.model,
		MaxTokens:   n.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: narratorSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(renderPrompt(rec)))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("narration request failed: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// renderPrompt flattens the ranked sites into a compact plain-text table
// the model can summarize without seeing raw JSON.
func renderPrompt(rec *contracts.Recommendation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target: area=%s phase=%s intervention=%s\n",
		rec.Profile.TherapeuticArea, rec.Profile.Phase, rec.Profile.InterventionType)
	fmt.Fprintf(&sb, "Ranked sites (%d):\n", len(rec.Sites))

	for _, rs := range rec.Sites {
		fmt.Fprintf(&sb, "%d. %s (%s) tier=%s overall=%.2f therapeutic=%.2f phase=%.2f intervention=%.2f geographic=%.2f",
			rs.Rank, rs.Site.Name, rs.Site.Country, rs.Tier,
			rs.Scores.Overall, rs.Scores.Therapeutic, rs.Scores.Phase,
			rs.Scores.Intervention, rs.Scores.Geographic)
		for _, f := range rs.Strengths {
			fmt.Fprintf(&sb, " strength[%s]", f.Dimension)
		}
		for _, f := range rs.Weaknesses {
			fmt.Fprintf(&sb, " weakness[%s]", f.Dimension)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
