package models

import "time"

// Phase is the stage of a search session's state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// DefaultHistoryLimit is the number of recent queries a history store retains.
const DefaultHistoryLimit = 10

// HistoryEntry is a persisted recent query.
type HistoryEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}

// SearchState is a read-only snapshot of a search session.
//
// Phase success implies an empty ErrorMessage, phase error implies no results,
// and IsInitial implies phase idle with an empty QueryText.
type SearchState struct {
	QueryText    string         `json:"query_text"`
	Phase        Phase          `json:"phase"`
	Results      []MovieSummary `json:"results"`
	ErrorMessage string         `json:"error_message,omitempty"`
	IsInitial    bool           `json:"is_initial"`
	History      []string       `json:"history"`
	LastQuery    string         `json:"last_query,omitempty"`
	Version      uint64         `json:"version"`
}

// InitialSearchState is the state of a freshly opened or cleared search view.
func InitialSearchState() SearchState {
	return SearchState{
		Phase:     PhaseIdle,
		Results:   []MovieSummary{},
		IsInitial: true,
		History:   []string{},
	}
}

// QueryRequest carries the current input text.
type QueryRequest struct {
	Text string `json:"text"`
}

// SubmitRequest carries a query to search for.
type SubmitRequest struct {
	Query string `json:"query"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string      `json:"session_id"`
	State     SearchState `json:"state"`
}

// HistoryResponse lists recent queries, most recent first.
type HistoryResponse struct {
	History []string `json:"history"`
}
