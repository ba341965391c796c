package models

// TaskType is the kind of AI work a request performs. It drives the default
// quality level and the latency budget for the request.
type TaskType string

const (
	TaskAutocomplete    TaskType = "AUTOCOMPLETE"
	TaskCaptionRewrite  TaskType = "CAPTION_REWRITE"
	TaskPostGeneration  TaskType = "POST_GENERATION"
	TaskImageGeneration TaskType = "IMAGE_GENERATION"
	TaskVideoGeneration TaskType = "VIDEO_GENERATION"
	TaskGeneric         TaskType = "GENERIC"
)

// TaskConfig holds per-task-type defaults.
type TaskConfig struct {
	MaxLatencyMs   int
	DefaultQuality QualityLevel
	Cacheable      bool
}

var taskConfigs = map[TaskType]TaskConfig{
	TaskAutocomplete:    {MaxLatencyMs: 1000, DefaultQuality: QualityStandard, Cacheable: true},
	TaskCaptionRewrite:  {MaxLatencyMs: 3000, DefaultQuality: QualityHigh, Cacheable: true},
	TaskPostGeneration:  {MaxLatencyMs: 10000, DefaultQuality: QualityPremium, Cacheable: false},
	TaskImageGeneration: {MaxLatencyMs: 30000, DefaultQuality: QualityPremium, Cacheable: true},
	TaskVideoGeneration: {MaxLatencyMs: 120000, DefaultQuality: QualityPremium, Cacheable: false},
	TaskGeneric:         {MaxLatencyMs: 5000, DefaultQuality: QualityStandard, Cacheable: false},
}

// Config returns the configuration for the task type. Unknown task types
// resolve to the generic configuration rather than failing.
func (t TaskType) Config() TaskConfig {
	if cfg, ok := taskConfigs[t]; ok {
		return cfg
	}
	return taskConfigs[TaskGeneric]
}

// Valid reports whether the task type is one of the known types.
func (t TaskType) Valid() bool {
	_, ok := taskConfigs[t]
	return ok
}
