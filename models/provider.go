package models

// ProviderID identifies a backend model provider.
type ProviderID string

const (
	ProviderOpenAI  ProviderID = "OPENAI"
	ProviderGLM     ProviderID = "GLM"
	ProviderClaude  ProviderID = "CLAUDE"
	ProviderMistral ProviderID = "MISTRAL"
)

// AllProviders lists every known provider in a stable order.
var AllProviders = []ProviderID{ProviderOpenAI, ProviderGLM, ProviderClaude, ProviderMistral}

// Valid reports whether the provider ID is one of the known providers.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderGLM, ProviderClaude, ProviderMistral:
		return true
	}
	return false
}

// ProviderClass is a quota budget bucket. Premium-grade providers draw from
// the premium budget, bulk-grade providers from the bulk budget. The two
// budgets are tracked independently per organization.
type ProviderClass string

const (
	ClassPremium ProviderClass = "PREMIUM"
	ClassBulk    ProviderClass = "BULK"
)

// Class returns the quota budget bucket this provider draws from.
func (p ProviderID) Class() ProviderClass {
	switch p {
	case ProviderOpenAI, ProviderClaude:
		return ClassPremium
	default:
		return ClassBulk
	}
}

// AlternateClass returns the other budget bucket.
func (c ProviderClass) AlternateClass() ProviderClass {
	if c == ClassPremium {
		return ClassBulk
	}
	return ClassPremium
}
