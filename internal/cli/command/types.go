package command

import "time"

// Response shapes of the admin API, decoded from the envelope data.

type poolStats struct {
	Origin       string `json:"origin"`
	Valid        int    `json:"valid"`
	Total        int    `json:"total"`
	Capacity     int    `json:"capacity"`
	MinThreshold int    `json:"min_threshold" table:"wide"`
	Replenishing bool   `json:"replenishing"`
}

type poolListing struct {
	Origins []poolStats `json:"origins"`
}

type credentialView struct {
	Fingerprint string `json:"fp"`
	CreatedAt   int64  `json:"created_at" table:"wide,millis"`
	ExpiresAt   int64  `json:"expires_at" table:"wide,millis"`
	ExpiresIn   string `json:"expires_in"`
	Valid       bool   `json:"valid"`
}

type poolView struct {
	poolStats
	BaseURL     string           `json:"base_url"`
	Credentials []credentialView `json:"credentials"`
}

type replenishResult struct {
	RunID      string        `json:"run_id,omitempty"`
	Origin     string        `json:"origin"`
	Requested  int           `json:"requested"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

type invalidateResult struct {
	Removed bool `json:"removed"`
	Valid   int  `json:"valid"`
}

type healthStatus struct {
	Status       string   `json:"status"`
	Version      string   `json:"version,omitempty"`
	Time         string   `json:"time,omitempty"`
	EmptyOrigins []string `json:"empty_origins,omitempty"`
}
