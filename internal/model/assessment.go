package model

// Assessment is the outcome of scoring one user on a page.
type Assessment struct {
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	ProfileURL string      `json:"profile_url"`
	Snapshot   Snapshot    `json:"snapshot"`
	Score      ScoreResult `json:"score"`
	IsOP       bool        `json:"is_op"`
	Trusted    bool        `json:"trusted"`

	// Listing mode only.
	ThreadID    string `json:"thread_id,omitempty"`
	ThreadTitle string `json:"thread_title,omitempty"`
	ThreadURL   string `json:"thread_url,omitempty"`
}
