package model

// Tier is the discrete risk classification of a probability.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// ScoreResult is recomputed on every render so it follows live settings.
type ScoreResult struct {
	Probability int  `json:"probability"`
	Tier        Tier `json:"tier"`
}
