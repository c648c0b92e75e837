package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/security/audit"
)

func newTestAuditor(s *fakeStore) *AuditorService {
	return NewAuditorService(
		&fakeAppRepo{s: s},
		&fakePropertyRepo{s: s},
		&fakeTransactor{s: s},
		audit.NewLogger(nil),
		nil,
	)
}

// corruptStore builds a data set where an approval committed on the
// application but the property flip and sibling rejection were lost.
func corruptStore() *fakeStore {
	s := newFakeStore()
	s.addUser("owner-1", "Olive", domain.RoleOwner)
	s.addUser("tenant-1", "Tara", domain.RoleTenant)
	s.addUser("tenant-2", "Tom", domain.RoleTenant)
	s.addProperty("prop-1", "owner-1")

	now := time.Now()
	approved := s.addApplication("app-1", "tenant-1", "prop-1", now.Add(-time.Hour))
	approved.Status = domain.StatusApproved
	decided := now.Add(-time.Minute)
	approved.DecisionDate = &decided

	s.addApplication("app-2", "tenant-2", "prop-1", now.Add(-30*time.Minute))
	return s
}

func TestDiagnoseFindsDiscrepancies(t *testing.T) {
	s := corruptStore()
	auditor := newTestAuditor(s)

	discrepancies, err := auditor.Diagnose(context.Background())
	require.NoError(t, err)
	require.Len(t, discrepancies, 1)

	d := discrepancies[0]
	assert.Equal(t, "prop-1", d.PropertyID)
	assert.Equal(t, "app-1", d.ApplicationID)
	assert.Equal(t, 1, d.PendingSiblings)
	assert.Len(t, d.Issues, 3)
}

func TestDiagnoseCleanStore(t *testing.T) {
	s := newFakeStore()
	s.addUser("owner-1", "Olive", domain.RoleOwner)
	s.addProperty("prop-1", "owner-1")

	auditor := newTestAuditor(s)

	discrepancies, err := auditor.Diagnose(context.Background())
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestRepairRestoresInvariants(t *testing.T) {
	s := corruptStore()
	auditor := newTestAuditor(s)
	ctx := context.Background()

	results, err := auditor.Repair(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].PropertyFixed)
	assert.Equal(t, int64(1), results[0].SiblingsRejected)
	assert.Empty(t, results[0].Error)

	// Property matches the approved application again
	prop := s.props["prop-1"]
	assert.False(t, prop.IsAvailable)
	require.NotNil(t, prop.CurrentTenantID)
	assert.Equal(t, "tenant-1", *prop.CurrentTenantID)

	// The stray pending sibling is gone
	sibling := s.apps["app-2"]
	assert.Equal(t, domain.StatusRejected, sibling.Status)
	assert.True(t, sibling.AutoRejected)
	require.NotNil(t, sibling.OwnerResponse)
	assert.Equal(t, repairResponse, *sibling.OwnerResponse)

	// Repair is idempotent: a second pass finds a consistent store
	results, err = auditor.Repair(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRepairUsesDecisionDateForRentedDate(t *testing.T) {
	s := corruptStore()
	auditor := newTestAuditor(s)

	_, err := auditor.Repair(context.Background())
	require.NoError(t, err)

	prop := s.props["prop-1"]
	require.NotNil(t, prop.RentedDate)
	assert.Equal(t, *s.apps["app-1"].DecisionDate, *prop.RentedDate)
}
