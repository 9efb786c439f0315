// Package authority abstracts how provider verification decisions are made.
//
// The registry historically grew two parallel models: an owner-verified one
// and a quorum-verified one. They are unified behind Source; the provider
// state machine is shared and only the decision rule differs.
package authority

import (
	"certo/internal/policy"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// Decision is the outcome of applying a vote to a request.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionApproved
	DecisionRejected
)

// Reviewer is the slice of a provider record a Source needs to judge
// eligibility.
type Reviewer struct {
	ID             id.Identity
	Verified       bool
	AuthorityLevel int
}

// Vote mirrors provider.Vote without importing it (keeps this package leaf).
type Vote struct {
	Reviewer id.Identity
	Approve  bool
}

// Source decides who may review and when a request is decided.
type Source interface {
	// Eligible returns nil when the caller may vote on a request.
	Eligible(caller id.Identity, reviewer *Reviewer) error
	// Decide evaluates the vote tally against the quorum threshold.
	Decide(votes []Vote, threshold int) Decision
}

// SingleApprover lets only the system owner decide, immediately.
type SingleApprover struct {
	Owner id.Identity
}

func (s SingleApprover) Eligible(caller id.Identity, _ *Reviewer) error {
	if caller != s.Owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner reviews providers")
	}
	return nil
}

func (s SingleApprover) Decide(votes []Vote, _ int) Decision {
	if len(votes) == 0 {
		return DecisionPending
	}
	if votes[len(votes)-1].Approve {
		return DecisionApproved
	}
	return DecisionRejected
}

// QuorumApprover requires votes from distinct verified supervisors; the
// request decides once the tally reaches the threshold, approval winning on
// majority.
type QuorumApprover struct{}

func (QuorumApprover) Eligible(_ id.Identity, reviewer *Reviewer) error {
	if reviewer == nil || !reviewer.Verified {
		return dErrors.New(dErrors.CodeNotAuthorized, "reviewer must be a verified provider")
	}
	if reviewer.AuthorityLevel < policy.SupervisorLevel {
		return dErrors.New(dErrors.CodeNotAuthorized, "reviewer authority below supervisor level")
	}
	return nil
}

func (QuorumApprover) Decide(votes []Vote, threshold int) Decision {
	if len(votes) < threshold {
		return DecisionPending
	}
	approvals := 0
	for _, v := range votes {
		if v.Approve {
			approvals++
		}
	}
	if approvals*2 > len(votes) {
		return DecisionApproved
	}
	return DecisionRejected
}
