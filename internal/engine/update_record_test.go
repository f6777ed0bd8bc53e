package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdap/playbook/internal/domain"
)

// fakeWebAPI records CRM operations instead of issuing HTTP calls.
type fakeWebAPI struct {
	updates []recordedUpdate
	creates []recordedCreate
	err     error
	nextID  string
}

type recordedUpdate struct {
	entity   string
	recordID string
	fields   map[string]any
}

type recordedCreate struct {
	entity string
	fields map[string]any
}

func (f *fakeWebAPI) UpdateRecord(_ context.Context, entity, recordID string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, recordedUpdate{entity: entity, recordID: recordID, fields: fields})
	return nil
}

func (f *fakeWebAPI) CreateRecord(_ context.Context, entity string, fields map[string]any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.creates = append(f.creates, recordedCreate{entity: entity, fields: fields})
	return f.nextID, nil
}

const testRecordID = "f3b9a7c2-1d44-4e9b-8a21-6c9d2f7e5a10"

func TestUpdateRecordPatchesFieldsAndLookups(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewUpdateRecordExecutor(api, newTemplates(), allowAllGate{})
	outputs := map[string]domain.NodeOutput{
		"analysis": domain.Ok("node-0", "analysis", map[string]any{"risk": "high"}),
	}
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"`+testRecordID+`",
		  "fields":{"description":"Risk: {{analysis.output.risk}}","estimatedvalue":5000},
		  "lookups":{"parentaccountid":{"entitySet":"accounts","recordId":"0a1b2c3d-0000-4000-8000-000000000001"}}}`,
		outputs)

	out := exec.Execute(context.Background(), ec)

	require.True(t, out.Success, out.ErrorMessage)
	require.Len(t, api.updates, 1)
	up := api.updates[0]
	assert.Equal(t, "opportunity", up.entity)
	assert.Equal(t, testRecordID, up.recordID)
	assert.Equal(t, "Risk: high", up.fields["description"])
	assert.Equal(t, float64(5000), up.fields["estimatedvalue"])
	assert.Equal(t, "/accounts(0a1b2c3d-0000-4000-8000-000000000001)", up.fields["parentaccountid@odata.bind"])
}

func TestUpdateRecordInvalidRecordID(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewUpdateRecordExecutor(api, newTemplates(), allowAllGate{})
	outputs := map[string]domain.NodeOutput{
		"analysis": domain.Ok("node-0", "analysis", map[string]any{"id": "not-a-guid"}),
	}
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"{{analysis.output.id}}","fields":{"description":"x"}}`,
		outputs)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeInternalError, out.ErrorCode)
	assert.Equal(t, `Invalid record ID: "not-a-guid"`, out.ErrorMessage)
	assert.Empty(t, api.updates, "must fail before any write")
}

func TestUpdateRecordInvalidConfigNeverWrites(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewUpdateRecordExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"`+testRecordID+`","fields":{}}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeValidationFailed, out.ErrorCode)
	assert.Empty(t, api.updates)
}

func TestUpdateRecordPolicyBlocked(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewUpdateRecordExecutor(api, newTemplates(), denyAllGate{reason: "entity writes disabled"})
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"`+testRecordID+`","fields":{"description":"x"}}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodePolicyBlocked, out.ErrorCode)
	assert.Empty(t, api.updates)
}

func TestUpdateRecordAPIFailure(t *testing.T) {
	api := &fakeWebAPI{err: errors.New("403 Forbidden")}
	exec := NewUpdateRecordExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"`+testRecordID+`","fields":{"description":"x"}}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeInternalError, out.ErrorCode)
	assert.Contains(t, out.ErrorMessage, "403 Forbidden")
}

func TestUpdateRecordCancelled(t *testing.T) {
	api := &fakeWebAPI{}
	exec := NewUpdateRecordExecutor(api, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindUpdateRecord,
		`{"entityLogicalName":"opportunity","recordId":"`+testRecordID+`","fields":{"description":"x"}}`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := exec.Execute(ctx, ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeCancelled, out.ErrorCode)
	assert.Empty(t, api.updates)
}

func TestUpdateRecordValidate(t *testing.T) {
	exec := NewUpdateRecordExecutor(&fakeWebAPI{}, newTemplates(), nil)
	cases := []struct {
		name   string
		config string
		valid  bool
	}{
		{"complete", `{"entityLogicalName":"opportunity","recordId":"id","fields":{"a":1}}`, true},
		{"missing entity", `{"recordId":"id","fields":{"a":1}}`, false},
		{"missing record id", `{"entityLogicalName":"opportunity","fields":{"a":1}}`, false},
		{"empty fields", `{"entityLogicalName":"opportunity","recordId":"id","fields":{}}`, false},
		{"empty config", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := testContext(domain.ActionKindUpdateRecord, tc.config, nil)
			vr := exec.Validate(context.Background(), ec)
			assert.Equal(t, tc.valid, vr.Valid, vr.Message())
		})
	}
}
