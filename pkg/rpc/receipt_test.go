package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSucceeded(t *testing.T) {
	tests := []struct {
		name    string
		receipt *Receipt
		want    bool
	}{
		{
			name:    "nil receipt",
			receipt: nil,
			want:    false,
		},
		{
			name:    "execution status succeeded",
			receipt: &Receipt{ExecutionStatus: "SUCCEEDED"},
			want:    true,
		},
		{
			name:    "execution status reverted",
			receipt: &Receipt{ExecutionStatus: "REVERTED", FinalityStatus: "ACCEPTED_ON_L2"},
			want:    false,
		},
		{
			name:    "finality only, accepted on l2",
			receipt: &Receipt{FinalityStatus: "ACCEPTED_ON_L2"},
			want:    true,
		},
		{
			name:    "finality only, accepted on l1",
			receipt: &Receipt{FinalityStatus: "ACCEPTED_ON_L1"},
			want:    true,
		},
		{
			name:    "finality only, rejected",
			receipt: &Receipt{FinalityStatus: "REJECTED"},
			want:    false,
		},
		{
			name:    "legacy status accepted",
			receipt: &Receipt{Status: "ACCEPTED_ON_L2"},
			want:    true,
		},
		{
			name:    "legacy status pending",
			receipt: &Receipt{Status: "PENDING"},
			want:    false,
		},
		{
			name:    "no status fields at all",
			receipt: &Receipt{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Succeeded(tt.receipt))
		})
	}
}

func TestExtractEvents(t *testing.T) {
	events := []RawEvent{{FromAddress: "0x1", Keys: []string{"0xk"}}}

	assert.Equal(t, events, ExtractEvents(&Receipt{ExecutionStatus: "SUCCEEDED", Events: events}))
	assert.Nil(t, ExtractEvents(&Receipt{ExecutionStatus: "REVERTED", Events: events}),
		"reverted receipts contribute no events")
	assert.Nil(t, ExtractEvents(nil))
}

func TestTxIsDeploy(t *testing.T) {
	assert.True(t, (&Tx{Type: "DEPLOY"}).IsDeploy())
	assert.True(t, (&Tx{Type: "DEPLOY_ACCOUNT"}).IsDeploy())
	assert.False(t, (&Tx{Type: "INVOKE"}).IsDeploy())
	assert.False(t, (&Tx{Type: "DECLARE"}).IsDeploy())
}
