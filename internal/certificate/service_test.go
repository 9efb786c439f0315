package certificate

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"certo/internal/audit"
	"certo/internal/patient"
	"certo/internal/policy"
	"certo/internal/provider"
	"certo/internal/provider/authority"
	"certo/internal/registry"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/testutil"
)

const (
	ownerID    = id.Identity("system-owner")
	patientID  = id.Identity("alice")
	issuerID   = id.Identity("dr-bob")
	chiefID    = id.Identity("dr-chief")
	outsiderID = id.Identity("dr-outsider")
)

type CertificateServiceSuite struct {
	suite.Suite
	store         *InMemoryStore
	registry      *registry.Registry
	providerStore *provider.InMemoryStore
	service       *Service
}

func (s *CertificateServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.registry = registry.New(3)
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), s.registry)

	patientStore := patient.NewInMemoryStore()
	patients := patient.NewService(patientStore, auditor, ownerID)
	_, err := patients.Register(testutil.Ctx(patientID, 100), 0b1111, "")
	s.Require().NoError(err)

	s.providerStore = provider.NewInMemoryStore()
	providers := provider.NewService(s.providerStore, s.registry, authority.QuorumApprover{}, auditor, ownerID)
	s.seedProvider(issuerID, 2, provider.StatusVerified)
	s.seedProvider(chiefID, policy.SupervisorLevel, provider.StatusVerified)
	s.seedProvider(outsiderID, 2, provider.StatusVerified)

	s.service = NewService(s.store, s.registry, patients, providers, auditor, ownerID)
}

func TestCertificateServiceSuite(t *testing.T) {
	suite.Run(t, new(CertificateServiceSuite))
}

func (s *CertificateServiceSuite) seedProvider(providerID id.Identity, level int, status provider.Status) {
	s.Require().NoError(s.providerStore.SaveProvider(context.Background(), &provider.Provider{
		ID:               providerID,
		LicenseHash:      hash(0xAA),
		Jurisdiction:     "EU",
		AuthorityLevel:   level,
		Status:           status,
		CredentialExpiry: 100_000_000,
	}))
}

func (s *CertificateServiceSuite) issue(clock uint64, period uint64, mask int) *Certificate {
	cert, err := s.service.Issue(testutil.Ctx(issuerID, clock), IssueInput{
		Patient:        patientID,
		VaccineHash:    hash(0x01),
		ValidityPeriod: period,
		Commitment:     hash(0x02),
		DisclosureMask: mask,
	})
	s.Require().NoError(err)
	return cert
}

func hash(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func (s *CertificateServiceSuite) TestIssue() {
	s.Run("mints a certificate with strict expiry bounds", func() {
		cert := s.issue(1000, policy.MinValidityPeriod, 0b0110)
		s.Equal(id.CertificateID(1), cert.ID)
		s.Equal(uint64(1000+policy.MinValidityPeriod), cert.ValidUntil)
		s.True(cert.Valid(cert.ValidUntil-1))
		s.False(cert.Valid(cert.ValidUntil), "certificate must be invalid at exactly its expiry clock")
	})

	s.Run("rejected issuance consumes no certificate id", func() {
		_, err := s.service.Issue(testutil.Ctx(issuerID, 1001), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MaxValidityPeriod + 1,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		cert := s.issue(1002, policy.MinValidityPeriod, 1)
		s.Equal(id.CertificateID(2), cert.ID)
	})

	s.Run("rejects disclosure masks above four bits", func() {
		_, err := s.service.Issue(testutil.Ctx(issuerID, 1003), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 16,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown patients", func() {
		_, err := s.service.Issue(testutil.Ctx(issuerID, 1004), IssueInput{
			Patient:        "nobody",
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("omitted mask defaults to the patient's preferences", func() {
		cert, err := s.service.Issue(testutil.Ctx(issuerID, 1006), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: UseDefaultDisclosure,
		})
		s.Require().NoError(err)
		s.Equal(0b1111, cert.Disclosure.Bits())
	})

	s.Run("rejects non-provider callers", func() {
		_, err := s.service.Issue(testutil.Ctx("random-person", 1005), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})
}

func (s *CertificateServiceSuite) TestRevoke() {
	cert := s.issue(1000, policy.MinValidityPeriod, 0b1111)

	s.Run("unrelated provider below supervisor level cannot revoke", func() {
		err := s.service.Revoke(testutil.Ctx(outsiderID, 1100), patientID, cert.ID, "suspicion")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("issuer revokes", func() {
		s.Require().NoError(s.service.Revoke(testutil.Ctx(issuerID, 1101), patientID, cert.ID, "dosage error"))

		got, err := s.service.Get(context.Background(), patientID, cert.ID)
		s.Require().NoError(err)
		s.False(got.Active)
		s.True(got.EmergencyRevoked)
		s.False(got.Valid(1102))
	})

	s.Run("second revocation is a duplicate action", func() {
		err := s.service.Revoke(testutil.Ctx(issuerID, 1103), patientID, cert.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("supervisor revokes certificates they did not issue", func() {
		other := s.issue(1104, policy.MinValidityPeriod, 1)
		s.Require().NoError(s.service.Revoke(testutil.Ctx(chiefID, 1105), patientID, other.ID, "batch recall"))
	})
}

func (s *CertificateServiceSuite) TestEmergencyRecall() {
	s.issue(1000, policy.MinValidityPeriod, 0b1111)

	s.Run("only verified supervisors initiate recalls", func() {
		_, err := s.service.InitiateRecall(testutil.Ctx(issuerID, 2000), hash(0x01), "adverse events")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("recall freezes all issuance", func() {
		recall, err := s.service.InitiateRecall(testutil.Ctx(chiefID, 2001), hash(0x01), "adverse events")
		s.Require().NoError(err)
		s.Equal(id.RecallID(1), recall.ID)
		s.True(s.registry.EmergencyMode())

		_, err = s.service.Issue(testutil.Ctx(issuerID, 2002), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x09),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeSuspended), "issuance must be frozen, even for unrelated hashes")
	})

	s.Run("revocation still works during the freeze", func() {
		cert, err := s.service.Get(context.Background(), patientID, 1)
		s.Require().NoError(err)
		s.NoError(s.service.Revoke(testutil.Ctx(issuerID, 2003), patientID, cert.ID, "recalled batch"))
	})

	s.Run("confirmations require a supervisor and are single-shot", func() {
		_, err := s.service.ConfirmRecall(testutil.Ctx(issuerID, 2004), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))

		second := id.Identity("dr-second")
		s.seedProvider(second, policy.SupervisorLevel, provider.StatusVerified)
		recall, err := s.service.ConfirmRecall(testutil.Ctx(second, 2005), 1)
		s.Require().NoError(err)
		s.Equal(uint64(1), recall.Confirmations)

		_, err = s.service.ConfirmRecall(testutil.Ctx(second, 2006), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("only the owner clears the emergency", func() {
		err := s.service.ClearEmergency(testutil.Ctx(chiefID, 2007))
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))

		s.Require().NoError(s.service.ClearEmergency(testutil.Ctx(ownerID, 2008)))
		s.False(s.registry.EmergencyMode())

		recall, err := s.service.GetRecall(context.Background(), 1)
		s.Require().NoError(err)
		s.False(recall.Active)

		_, err = s.service.Issue(testutil.Ctx(issuerID, 2009), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x09),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.NoError(err, "issuance resumes once the freeze lifts")
	})
}

func (s *CertificateServiceSuite) TestDeclareEmergency() {
	s.Run("only the owner declares", func() {
		err := s.service.DeclareEmergency(testutil.Ctx(chiefID, 3000))
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
		s.False(s.registry.EmergencyMode())
	})

	s.Run("owner freezes issuance without a recall", func() {
		s.Require().NoError(s.service.DeclareEmergency(testutil.Ctx(ownerID, 3001)))
		s.True(s.registry.EmergencyMode())
		s.Equal(uint64(0), s.registry.Snapshot().ActiveRecalls)

		_, err := s.service.Issue(testutil.Ctx(issuerID, 3002), IssueInput{
			Patient:        patientID,
			VaccineHash:    hash(0x01),
			ValidityPeriod: policy.MinValidityPeriod,
			Commitment:     hash(0x02),
			DisclosureMask: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeSuspended))
	})

	s.Run("clear lifts an owner-declared freeze", func() {
		s.Require().NoError(s.service.ClearEmergency(testutil.Ctx(ownerID, 3003)))
		s.False(s.registry.EmergencyMode())

		cert := s.issue(3004, policy.MinValidityPeriod, 1)
		s.Equal(id.CertificateID(1), cert.ID)
	})
}

func (s *CertificateServiceSuite) TestCounters() {
	s.issue(1000, policy.MinValidityPeriod, 1)
	s.issue(1001, policy.MinValidityPeriod, 1)

	stats := s.registry.Snapshot()
	s.Equal(uint64(2), stats.CertificatesIssued)
}
