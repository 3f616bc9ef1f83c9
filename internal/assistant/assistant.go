// Package assistant answers operator questions through an OpenAI-compatible
// chat endpoint, grounding the model with the current dashboard figures.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/risk"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrUpstream     = errors.New("assistant upstream failed")
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Facts is the dashboard state the assistant is allowed to talk about.
type Facts struct {
	KPIs     aggregate.KPIs
	Summary  alerts.Summary
	TopRisks []risk.Assessment
}

type Assistant struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// New returns nil when neither an API key nor a base URL is configured.
func New(cfg Config, logger *slog.Logger) *Assistant {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Assistant{client: openai.NewClientWithConfig(oc), model: model, maxTokens: maxTokens, logger: logger}
}

// SystemPrompt describes the assistant's role and the current figures.
func SystemPrompt(f Facts) string {
	var b strings.Builder
	b.WriteString("Tu es l'assistant du tableau de bord One Health du Sénégal. ")
	b.WriteString("Réponds en français, de façon concise, uniquement à partir des données ci-dessous. ")
	b.WriteString("Si une information manque, dis-le.\n\n")

	k := f.KPIs
	fmt.Fprintf(&b, "Paludisme (cas confirmés, dernière année): %s\n", k.MalariaCases)
	fmt.Fprintf(&b, "Tuberculose (dernier indicateur): %s\n", k.TuberculosisCases)
	fmt.Fprintf(&b, "FVR humaine: %d cas, létalité %.2f%%\n", k.FvrHumainCases, k.FvrLethalityRate)
	fmt.Fprintf(&b, "FVR animale: %d cas\n", k.FvrAnimalCases)
	fmt.Fprintf(&b, "Grippe aviaire: %d cas\n", k.AvianFluCases)
	fmt.Fprintf(&b, "PM2.5 national le plus récent: %s µg/m³\n", k.PM25Recent)
	fmt.Fprintf(&b, "Régions suivies: %d, régions à risque élevé ou critique: %d, corrélation FVR homme/animal: %.2f\n",
		f.Summary.TotalRegions, f.Summary.HighRiskRegions, f.Summary.CorrelationFvr)

	if len(f.TopRisks) > 0 {
		b.WriteString("\nRégions les plus à risque:\n")
		for _, r := range f.TopRisks {
			fmt.Fprintf(&b, "- %s: score %.1f (%s)", r.Region, r.Score, r.Level)
			if len(r.Factors) > 0 {
				fmt.Fprintf(&b, ", facteurs: %s", strings.Join(r.Factors, "; "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (a *Assistant) Answer(ctx context.Context, message string, f Facts) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(f)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		a.logger.Error("assistant completion failed", "model", a.model, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TopRisks returns the n highest scored assessments, ties by region.
func TopRisks(assessed []risk.Assessment, n int) []risk.Assessment {
	out := append([]risk.Assessment(nil), assessed...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Region < out[j].Region
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
