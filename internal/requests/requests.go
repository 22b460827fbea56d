// Package requests is the registry of analytics requests submitted for
// admin review: the analysis that could not be served, why, and what
// happened to it.
package requests

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("requests: not found")
	ErrInvalidStatus = errors.New("requests: invalid status")
)

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusDeclined = "declined"
)

// ValidStatus reports whether a status value is one of the known states.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusReviewed, StatusDeclined:
		return true
	}
	return false
}

// Request carries the plan context alongside the raw requirement so a
// reviewer sees what the planner interpreted and which columns were absent
// without re-running the analysis.
type Request struct {
	ID               int64      `json:"id"`
	TableName        string     `json:"table_name"`
	Requirement      string     `json:"requirement"`
	TechnicalSummary string     `json:"technical_summary,omitempty"`
	RequiredColumns  []string   `json:"required_columns,omitempty"`
	MissingColumns   []string   `json:"missing_columns,omitempty"`
	AvailableColumns []string   `json:"available_columns,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	RequestedBy      string     `json:"requested_by"`
	Status           string     `json:"status"`
	ReviewNote       string     `json:"review_note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
}

type CreateInput struct {
	TableName        string
	Requirement      string
	TechnicalSummary string
	RequiredColumns  []string
	MissingColumns   []string
	AvailableColumns []string
	Reason           string
	RequestedBy      string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.TableName) == "" {
		return errors.New("table name is required")
	}
	if strings.TrimSpace(in.Requirement) == "" {
		return errors.New("requirement is required")
	}
	if strings.TrimSpace(in.RequestedBy) == "" {
		return errors.New("requester is required")
	}
	return nil
}

type ReviewInput struct {
	Status     string
	ReviewNote string
}

type Registry interface {
	Create(ctx context.Context, in CreateInput) (Request, error)
	List(ctx context.Context, status string) ([]Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	Review(ctx context.Context, id int64, in ReviewInput) (Request, error)
}
