package model

import "time"

type Visibility string

const (
	VisibilityCatalog Visibility = "catalog"
	VisibilityCustom  Visibility = "custom"
)

type ProblemStatement struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Domain                string     `json:"domain"`
	Topic                 string     `json:"topic,omitempty"`
	SuggestedTechnologies []string   `json:"suggested_technologies"`
	Visibility            Visibility `json:"visibility"`
	CreatedBy             string     `json:"created_by,omitempty"`
	SelectionCount        int        `json:"selection_count"`
	RemainingSlots        int        `json:"remaining_slots"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
}

type StatementPage struct {
	Items    []*ProblemStatement `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}
