package research

import (
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// Query is a search query with its session-unique id. The id doubles as the
// citation batch id of the search that runs it.
type Query struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// SearchRecord is the contribution of one executed query.
type SearchRecord struct {
	QueryID int               `json:"query_id"`
	Query   string            `json:"query"`
	Text    string            `json:"text"`
	Sources []citation.Source `json:"sources,omitempty"`
	Round   int               `json:"round"`
	// Failed is set when the search errored; Error carries the reason and
	// Text is empty.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// State is the per-session research state. It is owned by one session and
// only mutated by the controller between graph nodes.
type State struct {
	Conversation []*message.Message
	Topic        string
	Rationale    string

	PendingQueries []Query
	Queries        []Query
	Records        []SearchRecord
	Sources        []citation.Source

	LoopCount     int
	RanQueryCount int
	IsSufficient  bool
	KnowledgeGap  string
	FollowUps     []string

	InitialQueryCount int
	MaxLoops          int
	ReasoningModel    string

	Answer      string
	UsedSources []citation.Source
	Decision    Decision
}

// Summaries returns the texts of all successful records in merge order.
func (s *State) Summaries() []string {
	out := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Failed || r.Text == "" {
			continue
		}
		out = append(out, r.Text)
	}
	return out
}

// Decision is the controller's verdict after a reflection.
type Decision interface {
	isDecision()
}

// Finalize ends the loop and runs answer synthesis.
type Finalize struct {
	Reason string
}

// Dispatch runs another search round over Queries.
type Dispatch struct {
	Queries []Query
}

func (Finalize) isDecision() {}
func (Dispatch) isDecision() {}

// Finalize reasons.
const (
	ReasonSufficient  = "sufficient"
	ReasonLoopBudget  = "loop budget exhausted"
	ReasonNoFollowUps = "no follow-up queries"
)

// Request starts a research session. Either Messages or InitialMessage must
// be set; Messages wins when both are.
type Request struct {
	Messages          []*message.Message `json:"-"`
	InitialMessage    string             `json:"initial_message"`
	InitialQueryCount int                `json:"initial_query_count,omitempty"`
	MaxLoops          int                `json:"max_loops,omitempty"`
	ReasoningModel    string             `json:"reasoning_model,omitempty"`
}

// Response is the outcome of a research session.
type Response struct {
	SessionID     string            `json:"session_id"`
	Topic         string            `json:"topic"`
	Answer        string            `json:"answer"`
	Sources       []citation.Source `json:"sources"`
	Rationale     string            `json:"rationale,omitempty"`
	KnowledgeGap  string            `json:"knowledge_gap,omitempty"`
	Queries       []Query           `json:"queries"`
	Records       []SearchRecord    `json:"records,omitempty"`
	LoopCount     int               `json:"loop_count"`
	RanQueryCount int               `json:"ran_query_count"`
}
