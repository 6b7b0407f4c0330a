package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCorpusLoad EventType = "corpus_load"
)

// SearchEvent is published once per completed or failed search.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Corpus       string    `json:"corpus"`
	Mode         string    `json:"mode"`
	Query        string    `json:"query"`
	TotalMatches int       `json:"total_matches"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
}

// CorpusLoadEvent is published after every corpus fetch attempt.
type CorpusLoadEvent struct {
	Type      EventType `json:"type"`
	Corpus    string    `json:"corpus"`
	Sentences int       `json:"sentences"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope peeks at the type field before decoding the full event.
type envelope struct {
	Type EventType `json:"type"`
}
