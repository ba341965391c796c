package decision

import "github.com/postpulse/ai-router/models"

// Route is one routing matrix cell: the provider to try first and the
// provider to fall back to.
type Route struct {
	Primary  models.ProviderID
	Fallback models.ProviderID
}

// routingMatrix maps (task type, quality) to a primary/fallback pair.
// Bulk-class providers carry high-volume standard work; premium-class
// providers take over where output quality matters. Image and video
// generation only have one capable provider today.
var routingMatrix = map[models.TaskType]map[models.QualityLevel]Route{
	models.TaskAutocomplete: {
		models.QualityStandard: {Primary: models.ProviderGLM, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderGLM, Fallback: models.ProviderOpenAI},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
	},
	models.TaskCaptionRewrite: {
		models.QualityStandard: {Primary: models.ProviderGLM, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
	},
	models.TaskPostGeneration: {
		models.QualityStandard: {Primary: models.ProviderGLM, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
	},
	models.TaskImageGeneration: {
		models.QualityStandard: {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
	},
	models.TaskVideoGeneration: {
		models.QualityStandard: {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderOpenAI},
	},
	models.TaskGeneric: {
		models.QualityStandard: {Primary: models.ProviderGLM, Fallback: models.ProviderOpenAI},
		models.QualityHigh:     {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
		models.QualityPremium:  {Primary: models.ProviderOpenAI, Fallback: models.ProviderGLM},
	},
}

// resolveRoute looks up the matrix cell for a task and quality. Unknown
// task types resolve through the generic row, unknown quality levels
// through the task's standard column, so a lookup always succeeds.
func resolveRoute(task models.TaskType, quality models.QualityLevel) Route {
	row, ok := routingMatrix[task]
	if !ok {
		row = routingMatrix[models.TaskGeneric]
	}
	route, ok := row[quality]
	if !ok {
		route = row[models.QualityStandard]
	}
	return route
}

// RoutingMatrix exposes a copy of the matrix for inspection endpoints.
func RoutingMatrix() map[models.TaskType]map[models.QualityLevel]Route {
	out := make(map[models.TaskType]map[models.QualityLevel]Route, len(routingMatrix))
	for task, row := range routingMatrix {
		cells := make(map[models.QualityLevel]Route, len(row))
		for quality, route := range row {
			cells[quality] = route
		}
		out[task] = cells
	}
	return out
}
