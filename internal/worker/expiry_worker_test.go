package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentnest/internal/domain"
)

// staleApps implements just the ExpireStale slice of the repository; the
// sweeper touches nothing else.
type staleApps struct {
	domain.ApplicationRepository
	apps []*domain.Application
}

func (f *staleApps) ExpireStale(ctx context.Context, cutoff time.Time, response string, at time.Time) (int64, error) {
	var expired int64
	for _, a := range f.apps {
		if a.Status == domain.StatusPending && a.IsActive && a.ApplicationDate.Before(cutoff) {
			a.Status = domain.StatusExpired
			resp := response
			a.OwnerResponse = &resp
			decided := at
			a.DecisionDate = &decided
			expired++
		}
	}
	return expired, nil
}

func pendingApp(id string, appliedAt time.Time) *domain.Application {
	return &domain.Application{
		ID:              id,
		Status:          domain.StatusPending,
		ApplicationDate: appliedAt,
		IsActive:        true,
	}
}

func TestSweepExpiresOnlyStalePending(t *testing.T) {
	now := time.Now()
	repo := &staleApps{apps: []*domain.Application{
		pendingApp("old", now.Add(-31*24*time.Hour)),
		pendingApp("fresh", now.Add(-5*24*time.Hour)),
	}}
	decided := pendingApp("decided-old", now.Add(-40*24*time.Hour))
	decided.Status = domain.StatusApproved
	repo.apps = append(repo.apps, decided)

	sweeper := NewExpirySweeper(repo, nil, "0 2 * * *", 30*24*time.Hour)

	expired, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	assert.Equal(t, domain.StatusExpired, repo.apps[0].Status)
	require.NotNil(t, repo.apps[0].OwnerResponse)
	assert.Equal(t, ExpiryResponse, *repo.apps[0].OwnerResponse)
	require.NotNil(t, repo.apps[0].DecisionDate)

	assert.Equal(t, domain.StatusPending, repo.apps[1].Status)
	assert.Equal(t, domain.StatusApproved, repo.apps[2].Status)
}

func TestSweepIdempotent(t *testing.T) {
	now := time.Now()
	repo := &staleApps{apps: []*domain.Application{
		pendingApp("old", now.Add(-45*24*time.Hour)),
	}}

	sweeper := NewExpirySweeper(repo, nil, "0 2 * * *", 30*24*time.Hour)
	ctx := context.Background()

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired, "second sweep must find nothing")
}

func TestSweepWindowBoundary(t *testing.T) {
	sweeper := NewExpirySweeper(&staleApps{}, nil, "0 2 * * *", 30*24*time.Hour)
	fixed := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return fixed }

	repo := &staleApps{apps: []*domain.Application{
		pendingApp("exactly-30d", fixed.Add(-30*24*time.Hour)),
		pendingApp("just-over", fixed.Add(-30*24*time.Hour-time.Second)),
	}}
	sweeper.applications = repo

	expired, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	// Strictly-older-than: an application exactly at the window edge survives
	assert.Equal(t, int64(1), expired)
	assert.Equal(t, domain.StatusPending, repo.apps[0].Status)
	assert.Equal(t, domain.StatusExpired, repo.apps[1].Status)
}
