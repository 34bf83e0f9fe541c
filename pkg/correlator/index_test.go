package correlator

import (
	"testing"

	"github.com/cuemby/autoheal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLookup(t *testing.T) {
	idx := BuildIndex([]types.RunningInstance{
		eni("task-A", "10.0.1.5", "10.0.1.6"),
		bridged("task-B", "i-0abc", 32768, 32770),
		bridged("task-C", "i-0abc", 32769),
		eni("task-D", "10.0.2.1"),
		eni("task-E", "10.0.2.1"),
		{InstanceID: "task-F"},
	})

	tests := []struct {
		name     string
		address  string
		port     int
		wantID   string
		wantOK   bool
		conflict bool
	}{
		{"wildcard address any port", "10.0.1.5", 443, "task-A", true, false},
		{"second address same instance", "10.0.1.6", 80, "task-A", true, false},
		{"port zero hits wildcard", "10.0.1.5", 0, "task-A", true, false},
		{"exact host port", "i-0abc", 32770, "task-B", true, false},
		{"other host port", "i-0abc", 32769, "task-C", true, false},
		{"host without port", "i-0abc", 0, "", false, false},
		{"unknown", "10.9.9.9", 80, "", false, false},
		{"duplicate owner", "10.0.2.1", 80, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, conflict, ok := idx.Lookup(tt.address, tt.port)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			if tt.conflict {
				require.NotNil(t, conflict)
				assert.Equal(t, []string{"task-D", "task-E"}, conflict.InstanceIDs)
			} else {
				assert.Nil(t, conflict)
			}
		})
	}
}

func TestBuildIndexSkipsNonInterface(t *testing.T) {
	idx := BuildIndex([]types.RunningInstance{{
		InstanceID: "task-A",
		Attachments: []types.NetworkAttachment{
			{Kind: types.AttachmentOther, Addresses: []types.Address{{Family: types.AddressFamilyIPv4, Value: "10.0.0.1"}}},
			{Kind: types.AttachmentInterface, Addresses: []types.Address{{Family: types.AddressFamilyIPv4, Value: ""}}},
		},
	}})

	assert.Equal(t, 0, idx.Size())
}

func TestBuildIndexSameInstanceTwice(t *testing.T) {
	// An instance listing the same address on two attachments is still one owner
	inst := types.RunningInstance{
		InstanceID: "task-A",
		Attachments: []types.NetworkAttachment{
			{Kind: types.AttachmentInterface, Addresses: []types.Address{{Family: types.AddressFamilyIPv4, Value: "10.0.0.1"}}},
			{Kind: types.AttachmentInterface, Addresses: []types.Address{{Family: types.AddressFamilyIPv4, Value: "10.0.0.1"}}},
		},
	}
	idx := BuildIndex([]types.RunningInstance{inst})

	id, conflict, ok := idx.Lookup("10.0.0.1", 80)
	assert.True(t, ok)
	assert.Nil(t, conflict)
	assert.Equal(t, "task-A", id)
}
