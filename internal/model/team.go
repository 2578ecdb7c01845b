package model

import "time"

type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

type TeamMember struct {
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Team struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	ProblemStatementID string        `json:"problem_statement_id"`
	Members            []*TeamMember `json:"members"`
	CreatedAt          *time.Time    `json:"created_at,omitempty"`
	Rating             *float64      `json:"rating,omitempty"`
	TotalVotes         int           `json:"total_votes"`
}

// TeamSummary is the list-view shape: membership collapsed to a count.
type TeamSummary struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	ProblemStatementID string     `json:"problem_statement_id"`
	MemberCount        int        `json:"member_count"`
	Rating             *float64   `json:"rating,omitempty"`
	TotalVotes         int        `json:"total_votes"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
}

// LeaveResult tells the caller which of the three leave outcomes happened.
type LeaveResult struct {
	Disbanded   bool   `json:"disbanded"`
	NewLeaderID string `json:"new_leader_id,omitempty"`
}
