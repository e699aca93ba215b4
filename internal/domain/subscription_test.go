package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateNewEndDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		currentEnd     *time.Time
		durationMonths int
		want           time.Time
	}{
		{
			name:           "nil currentEnd - starts from now",
			currentEnd:     nil,
			durationMonths: 12,
			want:           now.AddDate(0, 12, 0),
		},
		{
			name:           "past currentEnd - starts from now",
			currentEnd:     timePtr(now.AddDate(0, -1, 0)),
			durationMonths: 1,
			want:           now.AddDate(0, 1, 0),
		},
		{
			name:           "future currentEnd - stacks from currentEnd",
			currentEnd:     timePtr(now.AddDate(0, 3, 0)),
			durationMonths: 12,
			want:           now.AddDate(0, 15, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNewEndDate(now, tt.currentEnd, tt.durationMonths)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusExpired))
	assert.True(t, CanTransition(StatusPending, StatusExpired))
	assert.True(t, CanTransition(StatusActive, StatusSuspended))
	assert.True(t, CanTransition(StatusSuspended, StatusActive))
	assert.True(t, CanTransition(StatusPending, StatusActive))

	assert.False(t, CanTransition(StatusSuspended, StatusExpired))
	assert.False(t, CanTransition(StatusExpired, StatusActive))
	assert.False(t, CanTransition(StatusExpired, StatusPending))
}

func TestSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []SubscriptionStatus{StatusPending, StatusActive}, SourcesFor(StatusExpired))
	assert.ElementsMatch(t, []SubscriptionStatus{StatusPending, StatusSuspended}, SourcesFor(StatusActive))
	assert.ElementsMatch(t, []SubscriptionStatus{StatusActive}, SourcesFor(StatusSuspended))
}

func TestSubscriptionValidate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Subscription{CustomerID: "c", PackageID: "p", StartDate: start, EndDate: start.AddDate(0, 1, 0), Status: StatusPending}

	ok := base
	assert.NoError(t, ok.Validate())

	sameDay := base
	sameDay.EndDate = start
	assert.True(t, errors.Is(sameDay.Validate(), ErrValidation))

	badStatus := base
	badStatus.Status = "cancelled"
	assert.Error(t, badStatus.Validate())

	noCustomer := base
	noCustomer.CustomerID = ""
	assert.Error(t, noCustomer.Validate())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
