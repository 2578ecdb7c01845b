package model

import "time"

type Vote struct {
	ID          string     `json:"id"`
	VoterUserID string     `json:"voter_user_id"`
	TeamID      string     `json:"team_id"`
	Rating      int        `json:"rating"`
	Comment     string     `json:"comment"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// TeamRating is the aggregate derived from a team's vote set. Rating is
// nil when the team has no votes.
type TeamRating struct {
	Rating     *float64 `json:"rating,omitempty"`
	TotalVotes int      `json:"total_votes"`
}

// VoteStatus answers "has this voter already rated this team".
type VoteStatus struct {
	HasVoted bool  `json:"has_voted"`
	Vote     *Vote `json:"vote,omitempty"`
}

// TeamWithRating annotates a team summary with the caller's own vote.
type TeamWithRating struct {
	TeamSummary
	MyVote *Vote `json:"my_vote,omitempty"`
}

// VotingProgress is computed on demand from current team and vote state,
// never persisted.
type VotingProgress struct {
	EligibleTeams int  `json:"eligible_teams"`
	VotedTeams    int  `json:"voted_teams"`
	Completed     bool `json:"completed"`
}

type MyVotes struct {
	Votes    []*Vote         `json:"votes"`
	Progress *VotingProgress `json:"progress"`
}
