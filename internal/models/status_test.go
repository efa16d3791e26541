package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeStatus(t *testing.T) {
	tests := []struct {
		name     string
		stored   OrderStatus
		reported OrderStatus
		want     OrderStatus
		accepted bool
	}{
		{name: "advance created to approved", stored: StatusCreated, reported: StatusApproved, want: StatusApproved, accepted: true},
		{name: "advance approved to completed", stored: StatusApproved, reported: StatusCompleted, want: StatusCompleted, accepted: true},
		{name: "same rank is accepted", stored: StatusCreated, reported: StatusPayerActionRequired, want: StatusPayerActionRequired, accepted: true},
		{name: "same status", stored: StatusApproved, reported: StatusApproved, want: StatusApproved, accepted: true},
		{name: "regression is rejected", stored: StatusApproved, reported: StatusCreated, want: StatusApproved, accepted: false},
		{name: "completed never changes", stored: StatusCompleted, reported: StatusVoided, want: StatusCompleted, accepted: false},
		{name: "voided never changes", stored: StatusVoided, reported: StatusCompleted, want: StatusVoided, accepted: false},
		{name: "unknown does not overwrite known", stored: StatusApproved, reported: "MYSTERY", want: StatusApproved, accepted: false},
		{name: "known replaces unknown", stored: "MYSTERY", reported: StatusCreated, want: StatusCreated, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, accepted := MergeStatus(tt.stored, tt.reported)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.accepted, accepted)
		})
	}
}

func TestOrderStatus_Rank(t *testing.T) {
	assert.Less(t, StatusCreated.Rank(), StatusApproved.Rank())
	assert.Less(t, StatusApproved.Rank(), StatusCompleted.Rank())
	assert.Equal(t, StatusCompleted.Rank(), StatusVoided.Rank())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusApproved.IsTerminal())
	assert.False(t, OrderStatus("MYSTERY").IsKnown())
}
