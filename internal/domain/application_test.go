package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []Status{StatusApproved, StatusRejected, StatusWithdrawn, StatusExpired} {
		assert.True(t, s.Terminal(), "status %s should be terminal", s)
	}
}

func TestDecideSetsDecisionDateOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	app := &Application{Status: StatusPending}

	require.NoError(t, app.Decide(StatusRejected, "sorry, unit taken", now))
	assert.Equal(t, StatusRejected, app.Status)
	require.NotNil(t, app.DecisionDate)
	assert.Equal(t, now, *app.DecisionDate)
	require.NotNil(t, app.OwnerResponse)
	assert.Equal(t, "sorry, unit taken", *app.OwnerResponse)

	// A second decision must fail and leave the first intact.
	err := app.Decide(StatusApproved, "welcome", now.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "cannot update application with status: rejected", err.Error())
	assert.Equal(t, now, *app.DecisionDate)
}

func TestDecideFromEveryTerminalStateFails(t *testing.T) {
	now := time.Now()
	for _, from := range []Status{StatusApproved, StatusRejected, StatusWithdrawn, StatusExpired} {
		app := &Application{Status: from}
		err := app.Decide(StatusRejected, "", now)
		require.Error(t, err, "from %s", from)
		assert.True(t, errors.Is(err, ErrInvalidState))
	}
}

func TestDecideRejectsNonTerminalTarget(t *testing.T) {
	app := &Application{Status: StatusPending}
	err := app.Decide(StatusPending, "", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestDecideWithoutResponseLeavesOwnerResponseNil(t *testing.T) {
	app := &Application{Status: StatusPending}
	require.NoError(t, app.Decide(StatusWithdrawn, "", time.Now()))
	assert.Nil(t, app.OwnerResponse)
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{NotFoundf("property not found"), "not_found"},
		{Forbiddenf("not your property"), "forbidden"},
		{InvalidStatef("cannot update application with status: approved"), "invalid_state"},
		{Duplicatef("already applied"), "duplicate"},
		{Conflictf("property is not available"), "conflict"},
		{Transactionf("commit failed"), "transaction_failed"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Kind(tc.err))
		assert.True(t, IsDomain(tc.err))
	}
	assert.Equal(t, "", Kind(errors.New("disk on fire")))
	assert.False(t, IsDomain(nil))
}
