package governance

import "github.com/KOMKZ/go-yogan-liqguard/event"

// Event names
const (
	EventGuardianAdded    = "governance.guardian_added"
	EventGuardianRemoved  = "governance.guardian_removed"
	EventThresholdChanged = "governance.threshold_changed"
	EventProposalCreated  = "governance.proposal_created"
	EventVoteCast         = "governance.vote_cast"
	EventProposalExecuted = "governance.proposal_executed"
	EventEmergencyPaused  = "governance.emergency_paused"
)

// GuardianEvent guardian registry change
type GuardianEvent struct {
	event.BaseEvent
	Guardian string `json:"guardian"`
}

// ThresholdEvent threshold set by an admin or clamped after a removal
type ThresholdEvent struct {
	event.BaseEvent
	Threshold int  `json:"threshold"`
	Clamped   bool `json:"clamped"`
}

// ProposalEvent proposal lifecycle
type ProposalEvent struct {
	event.BaseEvent
	Proposal Proposal `json:"proposal"`
}

// VoteEvent a recorded vote
type VoteEvent struct {
	event.BaseEvent
	ProposalID string `json:"proposal_id"`
	Guardian   string `json:"guardian"`
	Approve    bool   `json:"approve"`
}

// PartitionKey keeps a proposal's lifecycle ordered on a partitioned stream
func (e *ProposalEvent) PartitionKey() string { return e.Proposal.ID }

// PartitionKey implements the event sink key hook
func (e *VoteEvent) PartitionKey() string { return e.ProposalID }
