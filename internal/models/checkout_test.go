package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"APPROVED", StatusApproved, true},
		{" Denied ", StatusDenied, true},
		{"idle", StatusIdle, true},
		{"submitting", StatusSubmitting, true},
		{"completed", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusDenied.Terminal())
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusSubmitting.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestItemJSONShape(t *testing.T) {
	// The catalog wire shape uses the original field names.
	var item Item
	require.NoError(t, json.Unmarshal([]byte(
		`{"productId": 3, "name": "Monitor", "description": "27 inch", "stock": 7, "price": 299900, "urlImage": "http://img/m.png"}`,
	), &item))

	assert.Equal(t, 3, item.ID)
	assert.Equal(t, "Monitor", item.Name)
	assert.Equal(t, 7, item.Stock)
	assert.Equal(t, int64(299900), item.Price)
	assert.Equal(t, "http://img/m.png", item.ImageURL)
}
