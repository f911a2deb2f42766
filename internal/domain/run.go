package domain

import "time"

// WorkflowKind names one of the two triggerable workflows.
type WorkflowKind string

const (
	WorkflowScrape   WorkflowKind = "scrape"
	WorkflowGenerate WorkflowKind = "generate"
)

// RunReport summarises one workflow invocation.
type RunReport struct {
	ID          string            `json:"id"`
	Kind        WorkflowKind      `json:"kind"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Communities []CommunityReport `json:"communities"`
	Err         string            `json:"error,omitempty"`
}

// CommunityReport captures what happened to a single community during a run.
type CommunityReport struct {
	Community  string `json:"community"`
	Sheet      string `json:"sheet"`
	Scraped    int    `json:"scraped,omitempty"`
	Fresh      int    `json:"fresh,omitempty"`
	Appended   int    `json:"appended,omitempty"`
	Candidates int    `json:"candidates,omitempty"`
	SelectedID string `json:"selectedId,omitempty"`
	Generated  bool   `json:"generated,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Failed reports whether the run or any community in it failed.
func (r RunReport) Failed() bool {
	if r.Err != "" {
		return true
	}
	for _, c := range r.Communities {
		if c.Err != "" {
			return true
		}
	}
	return false
}
