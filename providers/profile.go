package providers

import (
	"time"

	"github.com/postpulse/ai-router/models"
)

// Profile is the static capability and pricing sheet for one provider.
type Profile struct {
	Name    string
	BaseURL string

	// Models maps each quality level to the model name used for it.
	Models map[models.QualityLevel]string

	// ImageModel is set when the provider can generate images.
	ImageModel string

	MaxRetries int
	Timeout    time.Duration

	SupportsStreaming bool
	SupportsImages    bool
	SupportsVision    bool

	// CostPer1K is the price in USD per 1,000 tokens at each quality level.
	CostPer1K map[models.QualityLevel]float64
}

var profiles = map[models.ProviderID]Profile{
	models.ProviderOpenAI: {
		Name:    "OpenAI",
		BaseURL: "https://api.openai.com/v1",
		Models: map[models.QualityLevel]string{
			models.QualityPremium:  "gpt-4.1",
			models.QualityHigh:     "gpt-4o-mini",
			models.QualityStandard: "gpt-3.5-turbo",
		},
		ImageModel:        "dall-e-3",
		MaxRetries:        3,
		Timeout:           30 * time.Second,
		SupportsStreaming: true,
		SupportsImages:    true,
		SupportsVision:    true,
		CostPer1K: map[models.QualityLevel]float64{
			models.QualityStandard: 0.002,
			models.QualityHigh:     0.0008,
			models.QualityPremium:  0.04,
		},
	},
	models.ProviderGLM: {
		Name:    "GLM",
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Models: map[models.QualityLevel]string{
			models.QualityPremium:  "glm-4-flash",
			models.QualityHigh:     "glm-4-flash",
			models.QualityStandard: "glm-4-flash",
		},
		MaxRetries:        2,
		Timeout:           20 * time.Second,
		SupportsStreaming: true,
		CostPer1K: map[models.QualityLevel]float64{
			models.QualityStandard: 0.000001,
			models.QualityHigh:     0.000001,
			models.QualityPremium:  0.00001,
		},
	},
	models.ProviderClaude: {
		Name:    "Claude",
		BaseURL: "https://api.anthropic.com/v1",
		Models: map[models.QualityLevel]string{
			models.QualityPremium:  "claude-opus-4-5",
			models.QualityHigh:     "claude-sonnet-4-5",
			models.QualityStandard: "claude-haiku-3-5",
		},
		MaxRetries:        3,
		Timeout:           45 * time.Second,
		SupportsStreaming: true,
		SupportsVision:    true,
		CostPer1K: map[models.QualityLevel]float64{
			models.QualityStandard: 0.0008,
			models.QualityHigh:     0.003,
			models.QualityPremium:  0.015,
		},
	},
	models.ProviderMistral: {
		Name:    "Mistral",
		BaseURL: "https://api.mistral.ai/v1",
		Models: map[models.QualityLevel]string{
			models.QualityPremium:  "mistral-large-latest",
			models.QualityHigh:     "mistral-medium-latest",
			models.QualityStandard: "mistral-small-latest",
		},
		MaxRetries:        2,
		Timeout:           30 * time.Second,
		SupportsStreaming: true,
		CostPer1K: map[models.QualityLevel]float64{
			models.QualityStandard: 0.0002,
			models.QualityHigh:     0.0027,
			models.QualityPremium:  0.006,
		},
	},
}

// ProfileFor returns the static profile for a provider. Unknown providers
// resolve to the GLM profile so lookups never fail.
func ProfileFor(id models.ProviderID) Profile {
	if p, ok := profiles[id]; ok {
		return p
	}
	return profiles[models.ProviderGLM]
}

// ModelFor returns the model name a provider uses at a quality level,
// falling back to the standard model when the level is unknown.
func (p Profile) ModelFor(quality models.QualityLevel) string {
	if m, ok := p.Models[quality]; ok {
		return m
	}
	return p.Models[models.QualityStandard]
}

// CostFor returns the per-1K-token price at a quality level, with a default
// for levels missing from the sheet.
func (p Profile) CostFor(quality models.QualityLevel) float64 {
	if c, ok := p.CostPer1K[quality]; ok {
		return c
	}
	return 0.001
}
