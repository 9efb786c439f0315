package provider

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"certo/internal/audit"
	"certo/internal/policy"
	"certo/internal/provider/authority"
	"certo/internal/registry"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/testutil"
)

const ownerID = id.Identity("system-owner")

type ProviderServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	registry   *registry.Registry
	auditStore *audit.InMemoryStore
	service    *Service
}

func (s *ProviderServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.registry = registry.New(3)
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore, s.registry)
	s.service = NewService(s.store, s.registry, authority.QuorumApprover{}, auditor, ownerID)
}

func TestProviderServiceSuite(t *testing.T) {
	suite.Run(t, new(ProviderServiceSuite))
}

func (s *ProviderServiceSuite) seedSupervisor(name string) id.Identity {
	supervisor := id.Identity(name)
	s.Require().NoError(s.store.SaveProvider(context.Background(), &Provider{
		ID:               supervisor,
		LicenseHash:      hash(0xAA),
		Jurisdiction:     "EU",
		AuthorityLevel:   policy.SupervisorLevel,
		Status:           StatusVerified,
		CredentialExpiry: 100_000_000,
		Reputation:       500,
	}))
	return supervisor
}

func (s *ProviderServiceSuite) register(caller id.Identity, level int) *VerificationRequest {
	request, err := s.service.Register(testutil.Ctx(caller, 1000), RegisterInput{
		LicenseHash:    hash(0x01),
		Jurisdiction:   "EU",
		RequestedLevel: level,
	})
	s.Require().NoError(err)
	return request
}

func hash(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func (s *ProviderServiceSuite) TestRegister() {
	s.Run("creates pending provider and opens request", func() {
		request := s.register("dr-a", 3)
		s.Equal(id.RequestID(1), request.ID)
		s.Equal(RequestPending, request.Status)

		p, err := s.service.Get(context.Background(), "dr-a")
		s.Require().NoError(err)
		s.Equal(StatusPending, p.Status)
		s.Equal(1, p.AuthorityLevel)
		s.Equal(uint64(1000+policy.CredentialValidity), p.CredentialExpiry)
	})

	s.Run("rejects malformed license hash before consuming an id", func() {
		_, err := s.service.Register(testutil.Ctx("dr-b", 1000), RegisterInput{
			LicenseHash:    []byte{1, 2, 3},
			Jurisdiction:   "EU",
			RequestedLevel: 2,
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		request := s.register("dr-b", 2)
		s.Equal(id.RequestID(2), request.ID, "failed registration must not consume a request id")
	})

	s.Run("rejects repeat registration", func() {
		_, err := s.service.Register(testutil.Ctx("dr-a", 1001), RegisterInput{
			LicenseHash:    hash(0x02),
			Jurisdiction:   "EU",
			RequestedLevel: 2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))
	})

	s.Run("rejects the system identity as a principal", func() {
		_, err := s.service.Register(testutil.Ctx(ownerID, 1000), RegisterInput{
			LicenseHash:    hash(0x03),
			Jurisdiction:   "EU",
			RequestedLevel: 2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ProviderServiceSuite) TestReviewQuorumClampedToReviewerBound() {
	// A threshold above the reviewer list bound must still decide once the
	// list fills; otherwise pending requests could never leave Pending.
	s.registry.SetQuorumThreshold(policy.MaxQuorum)
	request := s.register("dr-new", 3)

	var outcome *ReviewOutcome
	for i := 0; i < policy.MaxReviewers; i++ {
		reviewer := s.seedSupervisor("clamp-reviewer-" + string(rune('a'+i)))
		var err error
		outcome, err = s.service.Review(testutil.Ctx(reviewer, 2000+uint64(i)), "dr-new", request.ID, true, "")
		s.Require().NoError(err)
	}

	s.Equal(RequestApproved, outcome.Status)
	s.True(outcome.QuorumMet)
	s.Equal(policy.MaxReviewers, outcome.Votes)

	p, err := s.service.Get(context.Background(), "dr-new")
	s.Require().NoError(err)
	s.Equal(StatusVerified, p.Status)
}

func (s *ProviderServiceSuite) TestReviewQuorum() {
	r1 := s.seedSupervisor("reviewer-1")
	r2 := s.seedSupervisor("reviewer-2")
	r3 := s.seedSupervisor("reviewer-3")
	request := s.register("dr-new", 3)

	s.Run("stays pending below threshold", func() {
		outcome, err := s.service.Review(testutil.Ctx(r1, 2000), "dr-new", request.ID, true, "")
		s.Require().NoError(err)
		s.Equal(RequestPending, outcome.Status)
		s.False(outcome.QuorumMet)

		outcome, err = s.service.Review(testutil.Ctx(r2, 2001), "dr-new", request.ID, false, "weak evidence")
		s.Require().NoError(err)
		s.Equal(RequestPending, outcome.Status)
		s.Equal(2, outcome.Votes)
	})

	s.Run("decides by majority exactly at threshold", func() {
		outcome, err := s.service.Review(testutil.Ctx(r3, 2002), "dr-new", request.ID, true, "")
		s.Require().NoError(err)
		s.Equal(RequestApproved, outcome.Status)
		s.True(outcome.QuorumMet)
		s.Equal(2, outcome.Approvals)

		p, err := s.service.Get(context.Background(), "dr-new")
		s.Require().NoError(err)
		s.Equal(StatusVerified, p.Status)
		s.Equal(3, p.AuthorityLevel)
		s.Equal(r3, p.VerifiedBy)
	})

	s.Run("rejects votes on a decided request", func() {
		r4 := s.seedSupervisor("reviewer-4")
		_, err := s.service.Review(testutil.Ctx(r4, 2003), "dr-new", request.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ProviderServiceSuite) TestReviewQuorumOrderIndependent() {
	r1 := s.seedSupervisor("reviewer-1")
	r2 := s.seedSupervisor("reviewer-2")
	r3 := s.seedSupervisor("reviewer-3")
	request := s.register("dr-new", 2)

	// Same tally as the approve-first ordering, rejection leading.
	_, err := s.service.Review(testutil.Ctx(r1, 2000), "dr-new", request.ID, false, "")
	s.Require().NoError(err)
	_, err = s.service.Review(testutil.Ctx(r2, 2001), "dr-new", request.ID, true, "")
	s.Require().NoError(err)
	outcome, err := s.service.Review(testutil.Ctx(r3, 2002), "dr-new", request.ID, true, "")
	s.Require().NoError(err)
	s.Equal(RequestApproved, outcome.Status)
}

func (s *ProviderServiceSuite) TestReviewEligibility() {
	supervisor := s.seedSupervisor("reviewer-1")
	request := s.register("dr-new", 2)

	s.Run("rejects self review", func() {
		_, err := s.service.Review(testutil.Ctx("dr-new", 2000), "dr-new", request.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("rejects unverified reviewers", func() {
		s.register("dr-other", 2)
		_, err := s.service.Review(testutil.Ctx("dr-other", 2000), "dr-new", request.ID, true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("changes reviewer membership at most once per reviewer", func() {
		_, err := s.service.Review(testutil.Ctx(supervisor, 2001), "dr-new", request.ID, true, "")
		s.Require().NoError(err)

		_, err = s.service.Review(testutil.Ctx(supervisor, 2002), "dr-new", request.ID, false, "")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))

		got, err := s.service.GetRequest(context.Background(), "dr-new", request.ID)
		s.Require().NoError(err)
		s.Len(got.Votes, 1)
		s.True(got.Votes[0].Approve, "duplicate vote must not alter the recorded vote")
	})
}

func (s *ProviderServiceSuite) TestSuspendReinstateRevoke() {
	target := s.seedSupervisor("dr-target")
	higher := id.Identity("dr-chief")
	s.Require().NoError(s.store.SaveProvider(context.Background(), &Provider{
		ID:               higher,
		LicenseHash:      hash(0xBB),
		Jurisdiction:     "EU",
		AuthorityLevel:   4,
		Status:           StatusVerified,
		CredentialExpiry: 100_000_000,
	}))

	s.Run("peer with equal authority cannot suspend", func() {
		peer := s.seedSupervisor("dr-peer")
		err := s.service.Suspend(testutil.Ctx(peer, 3000), target, "misconduct", 1000)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("higher authority suspends and expiry extends", func() {
		before, err := s.service.Get(context.Background(), target)
		s.Require().NoError(err)

		s.Require().NoError(s.service.Suspend(testutil.Ctx(higher, 3001), target, "misconduct", 5000))

		after, err := s.service.Get(context.Background(), target)
		s.Require().NoError(err)
		s.Equal(StatusSuspended, after.Status)
		s.Equal(before.CredentialExpiry+5000, after.CredentialExpiry)
	})

	s.Run("double suspension is a duplicate action", func() {
		err := s.service.Suspend(testutil.Ctx(higher, 3002), target, "again", 5000)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("owner reinstates", func() {
		s.Require().NoError(s.service.Reinstate(testutil.Ctx(ownerID, 3003), target))
		p, err := s.service.Get(context.Background(), target)
		s.Require().NoError(err)
		s.Equal(StatusVerified, p.Status)
	})

	s.Run("revocation is terminal", func() {
		s.Require().NoError(s.service.Revoke(testutil.Ctx(ownerID, 3004), target, "fraud"))

		err := s.service.Reinstate(testutil.Ctx(ownerID, 3005), target)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		err = s.service.Revoke(testutil.Ctx(ownerID, 3006), target, "fraud")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})
}

func (s *ProviderServiceSuite) TestRenewCredentials() {
	caller := id.Identity("dr-renew")
	s.Require().NoError(s.store.SaveProvider(context.Background(), &Provider{
		ID:               caller,
		LicenseHash:      hash(0x10),
		Jurisdiction:     "EU",
		AuthorityLevel:   2,
		Status:           StatusVerified,
		CredentialExpiry: 10_000_000,
	}))

	s.Run("too early before the renewal window", func() {
		err := s.service.RenewCredentials(testutil.Ctx(caller, 1_000_000), hash(0x11), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotYetOpen))
	})

	s.Run("expired at exactly the expiry clock", func() {
		err := s.service.RenewCredentials(testutil.Ctx(caller, 10_000_000), hash(0x11), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Run("renews inside the window", func() {
		now := uint64(10_000_000 - policy.RenewalPeriod + 1)
		s.Require().NoError(s.service.RenewCredentials(testutil.Ctx(caller, now), hash(0x11), nil))

		p, err := s.service.Get(context.Background(), caller)
		s.Require().NoError(err)
		s.Equal(hash(0x11), p.LicenseHash)
		s.Equal(now+policy.CredentialValidity, p.CredentialExpiry)
	})
}

func (s *ProviderServiceSuite) TestEndorse() {
	endorser := s.seedSupervisor("dr-endorser")
	endorsee := s.seedSupervisor("dr-endorsee")

	s.Run("grants a tenth of the endorser reputation", func() {
		endorsement, err := s.service.Endorse(testutil.Ctx(endorser, 4000), endorsee, EndorseClinical, nil)
		s.Require().NoError(err)
		s.Equal(50, endorsement.Score)

		p, err := s.service.Get(context.Background(), endorsee)
		s.Require().NoError(err)
		s.Equal(550, p.Reputation)
	})

	s.Run("caps reputation at the policy maximum", func() {
		p, err := s.service.Get(context.Background(), endorsee)
		s.Require().NoError(err)
		p.Reputation = policy.MaxReputation - 10
		s.Require().NoError(s.store.SaveProvider(context.Background(), p))

		_, err = s.service.Endorse(testutil.Ctx(endorser, 4001), endorsee, EndorseResearch, nil)
		s.Require().NoError(err)

		p, err = s.service.Get(context.Background(), endorsee)
		s.Require().NoError(err)
		s.Equal(policy.MaxReputation, p.Reputation)
	})

	s.Run("rejects self endorsement", func() {
		_, err := s.service.Endorse(testutil.Ctx(endorser, 4002), endorser, EndorseClinical, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("rejects unknown endorsement type", func() {
		_, err := s.service.Endorse(testutil.Ctx(endorser, 4003), endorsee, "cosmetic", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
