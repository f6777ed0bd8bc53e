package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdap/playbook/internal/domain"
)

func TestCreateTaskBuildsBindings(t *testing.T) {
	api := &fakeWebAPI{nextID: "9d2f7e5a-0000-4000-8000-0000000000ab"}
	exec := NewCreateTaskExecutor(api, newTemplates(), allowAllGate{})
	outputs := map[string]domain.NodeOutput{
		"analysis": domain.Ok("node-0", "analysis", nil).WithContent("review clause 4"),
	}
	ec := testContext(domain.ActionKindCreateTask,
		`{"subject":"Follow up: {{analysis.content}}","description":"From {{document.name}}",
		  "regardingObjectId":"`+testRecordID+`","regardingObjectType":"Opportunity",
		  "ownerId":"0a1b2c3d-0000-4000-8000-000000000002"}`,
		outputs)

	out := exec.Execute(context.Background(), ec)

	require.True(t, out.Success, out.ErrorMessage)
	require.Len(t, api.creates, 1)
	cr := api.creates[0]
	assert.Equal(t, "task", cr.entity)
	assert.Equal(t, "Follow up: review clause 4", cr.fields["subject"])
	assert.Equal(t, "From contract.pdf", cr.fields["description"])
	assert.Equal(t, "/opportunities("+testRecordID+")", cr.fields["regardingobjectid_opportunity@odata.bind"])
	assert.Equal(t, "/systemusers(0a1b2c3d-0000-4000-8000-000000000002)", cr.fields["ownerid@odata.bind"])

	data, err := domain.DecodeData[map[string]any](out)
	require.NoError(t, err)
	assert.Equal(t, "9d2f7e5a-0000-4000-8000-0000000000ab", data["taskId"])
}

func TestCreateTaskMinimal(t *testing.T) {
	api := &fakeWebAPI{nextID: "task-id"}
	exec := NewCreateTaskExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindCreateTask, `{"subject":"Manual review"}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.True(t, out.Success)
	require.Len(t, api.creates, 1)
	fields := api.creates[0].fields
	assert.Equal(t, "Manual review", fields["subject"])
	assert.NotContains(t, fields, "description")
	assert.NotContains(t, fields, "ownerid@odata.bind")
}

func TestCreateTaskInvalidConfigNeverCreates(t *testing.T) {
	api := &fakeWebAPI{nextID: "task-1"}
	exec := NewCreateTaskExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindCreateTask, `{"subject":"  "}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeValidationFailed, out.ErrorCode)
	assert.Empty(t, api.creates)
}

func TestCreateTaskPolicyBlocked(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewCreateTaskExecutor(api, newTemplates(), denyAllGate{reason: "task creation disabled"})
	ec := testContext(domain.ActionKindCreateTask, `{"subject":"s"}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodePolicyBlocked, out.ErrorCode)
	assert.Empty(t, api.creates)
}

func TestCreateTaskCancelled(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewCreateTaskExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindCreateTask, `{"subject":"s"}`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := exec.Execute(ctx, ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeCancelled, out.ErrorCode)
	assert.Empty(t, api.creates)
}

func TestCreateTaskValidate(t *testing.T) {
	exec := NewCreateTaskExecutor(&fakeWebAPI{}, newTemplates(), nil)
	cases := []struct {
		name   string
		config string
		valid  bool
	}{
		{"subject only", `{"subject":"s"}`, true},
		{"regarding pair", `{"subject":"s","regardingObjectId":"id","regardingObjectType":"opportunity"}`, true},
		{"missing subject", `{"description":"d"}`, false},
		{"regarding id without type", `{"subject":"s","regardingObjectId":"id"}`, false},
		{"regarding type without id", `{"subject":"s","regardingObjectType":"opportunity"}`, false},
		{"empty config", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := testContext(domain.ActionKindCreateTask, tc.config, nil)
			vr := exec.Validate(context.Background(), ec)
			assert.Equal(t, tc.valid, vr.Valid, vr.Message())
		})
	}
}
