package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_NilIsNull(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
}

func TestJSONMap_ScanStringAndBytes(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(`{"case_number":"123"}`))
	assert.Equal(t, "123", m["case_number"])

	require.NoError(t, m.Scan([]byte(`{"confidence_score":90}`)))
	assert.Equal(t, float64(90), m["confidence_score"])

	assert.Error(t, m.Scan(42))
}

func TestAutomationRule_WantsTrackingCard(t *testing.T) {
	rule := AutomationRule{}
	assert.False(t, rule.WantsTrackingCard())

	rule.ActionConfig = JSONMap{ActionCreateTrackingCard: "yes"}
	assert.False(t, rule.WantsTrackingCard())

	rule.ActionConfig = JSONMap{ActionCreateTrackingCard: true}
	assert.True(t, rule.WantsTrackingCard())
}

func TestMailbox_Cursor(t *testing.T) {
	m := Mailbox{}
	assert.Equal(t, uint32(0), m.Cursor())
	last := uint32(41)
	m.LastUID = &last
	assert.Equal(t, uint32(41), m.Cursor())
}
