package models

// QualityLevel is the caller-declared desired output grade. Higher levels
// route to more capable, costlier models.
type QualityLevel string

const (
	QualityStandard QualityLevel = "STANDARD"
	QualityHigh     QualityLevel = "HIGH"
	QualityPremium  QualityLevel = "PREMIUM"
)

// CostMultiplier returns the fixed cost multiplier for the quality level.
func (q QualityLevel) CostMultiplier() float64 {
	switch q {
	case QualityHigh:
		return 2.5
	case QualityPremium:
		return 10.0
	default:
		return 1.0
	}
}

// Valid reports whether the quality level is one of the known levels.
func (q QualityLevel) Valid() bool {
	switch q {
	case QualityStandard, QualityHigh, QualityPremium:
		return true
	}
	return false
}

// StepDown returns the next lower quality level and whether a step down is
// possible. Standard never degrades further.
func (q QualityLevel) StepDown() (QualityLevel, bool) {
	switch q {
	case QualityPremium:
		return QualityHigh, true
	case QualityHigh:
		return QualityStandard, true
	default:
		return q, false
	}
}
