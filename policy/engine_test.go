package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyAllows(t *testing.T) {
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	allowed, _, err := engine.Authorize(context.Background(), map[string]any{
		"action":    "update_record",
		"tenant_id": "tenant-a",
	})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDefaultPolicyBlocksEmptyRecipientList(t *testing.T) {
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	allowed, _, err := engine.Authorize(context.Background(), map[string]any{
		"action":     "send_email",
		"recipients": []string{},
	})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCustomPolicy(t *testing.T) {
	const content = `
package action_policy

default decision := "allow"

decision := "block" if {
	input.action == "update_record"
	input.entity == "invoice"
}
`
	engine, err := NewEngine(context.Background(), content)
	require.NoError(t, err)

	allowed, _, err := engine.Authorize(context.Background(), map[string]any{
		"action": "update_record",
		"entity": "invoice",
	})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _, err = engine.Authorize(context.Background(), map[string]any{
		"action": "update_record",
		"entity": "opportunity",
	})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestInvalidPolicyContent(t *testing.T) {
	_, err := NewEngine(context.Background(), "this is not rego")
	assert.Error(t, err)
}
