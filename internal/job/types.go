package job

import (
	"time"

	uuid "github.com/google/uuid"
)

type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusReceived, StatusProcessing, StatusFinished, StatusFailed}

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusProcessing, StatusFinished, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Rank orders statuses along the lifecycle. Both terminal statuses share a rank.
func (s Status) Rank() int {
	switch s {
	case StatusReceived:
		return 0
	case StatusProcessing:
		return 1
	case StatusFinished, StatusFailed:
		return 2
	}
	return -1
}

// Request is the original generation request. It is never modified after the job is created.
type Request struct {
	Message      string         `json:"message"`
	PreviousHTML string         `json:"previous_html,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	TopP         *float64       `json:"top_p,omitempty"`
	Seed         *int           `json:"seed,omitempty"`
	ContextSize  *int           `json:"num_ctx,omitempty"`
	MaxTokens    *int           `json:"num_predict,omitempty"`
	ExpectedSVGs *int           `json:"expected_svgs,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

type Result struct {
	Error       bool    `json:"error"`
	HTML        string  `json:"html"`
	Detail      string  `json:"detail,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Attempts    int     `json:"attempts,omitempty"`
	ArtifactURL string  `json:"artifact_url,omitempty"`
	ArtifactKey string  `json:"-"`
}

type Job struct {
	ID        uuid.UUID `json:"job_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Request   Request   `json:"-"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Clone returns a copy that shares no pointers or maps with r.
func (r Request) Clone() Request {
	out := r
	out.Temperature = clonePtr(r.Temperature)
	out.TopP = clonePtr(r.TopP)
	out.Seed = clonePtr(r.Seed)
	out.ContextSize = clonePtr(r.ContextSize)
	out.MaxTokens = clonePtr(r.MaxTokens)
	out.ExpectedSVGs = clonePtr(r.ExpectedSVGs)
	if r.Extra != nil {
		out.Extra = cloneValue(r.Extra).(map[string]any)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneValue copies the containers produced by encoding/json decoding.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

func (j Job) Expired(now time.Time) bool {
	return !now.Before(j.ExpiresAt)
}

// Stats pairs live per-status counts with counters accumulated since process start.
type Stats struct {
	Live  map[string]int `json:"live"`
	Total map[string]int `json:"total"`
}
