package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certo/internal/policy"
	id "certo/pkg/domain"
)

func TestIDAllocationIsMonotonic(t *testing.T) {
	r := New(3)

	assert.Equal(t, id.CertificateID(1), r.NextCertificateID())
	assert.Equal(t, id.CertificateID(2), r.NextCertificateID())
	assert.Equal(t, id.RequestID(1), r.NextRequestID(), "counters are independent per kind")
	assert.Equal(t, id.RecallID(1), r.NextRecallID())
	assert.Equal(t, id.VerificationID(1), r.NextVerificationID())
	assert.Equal(t, id.AuditID(1), r.NextAuditID())
	assert.Equal(t, id.AuditID(2), r.NextAuditID())
}

func TestQuorumThresholdBounds(t *testing.T) {
	assert.Equal(t, policy.DefaultQuorum, New(0).QuorumThreshold())
	assert.Equal(t, policy.DefaultQuorum, New(11).QuorumThreshold())
	assert.Equal(t, 5, New(5).QuorumThreshold())

	r := New(3)
	r.SetQuorumThreshold(7)
	assert.Equal(t, 7, r.QuorumThreshold())
}

type recordingMirror struct {
	states []bool
}

func (m *recordingMirror) SetEmergencyMode(_ context.Context, active bool) error {
	m.states = append(m.states, active)
	return nil
}

func TestEmergencyModeMirrors(t *testing.T) {
	mirror := &recordingMirror{}
	r := New(3, WithMirror(mirror))
	ctx := context.Background()

	require.False(t, r.EmergencyMode())
	r.EnterEmergency(ctx)
	assert.True(t, r.EmergencyMode())
	r.EnterEmergency(ctx)
	r.ClearEmergency(ctx)
	assert.False(t, r.EmergencyMode())

	assert.Equal(t, []bool{true, true, false}, mirror.states)
}

func TestSnapshot(t *testing.T) {
	r := New(4)
	r.CertificateIssued()
	r.CertificateIssued()
	r.VerificationPerformed()
	r.ProviderRegistered()
	r.ProviderVerified()
	r.ProviderUnverified()
	r.ProviderUnverified() // must not go negative
	r.RecallOpened()
	r.EnterEmergency(context.Background())

	stats := r.Snapshot()
	assert.Equal(t, uint64(2), stats.CertificatesIssued)
	assert.Equal(t, uint64(1), stats.VerificationsPerformed)
	assert.Equal(t, uint64(1), stats.TotalProviders)
	assert.Equal(t, uint64(0), stats.VerifiedProviders)
	assert.Equal(t, uint64(1), stats.ActiveRecalls)
	assert.True(t, stats.EmergencyMode)
	assert.Equal(t, 4, stats.QuorumThreshold)
}
