package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdap/playbook/internal/adapter/mail"
	"github.com/sdap/playbook/internal/domain"
)

// fakeSender records messages instead of delivering them.
type fakeSender struct {
	sent []mail.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func identityContext() context.Context {
	return domain.WithRequestIdentity(context.Background(), "test-token")
}

func TestSendEmailRendersAndSends(t *testing.T) {
	sender := &fakeSender{}
	exec := NewSendEmailExecutor(sender, newTemplates(), allowAllGate{})
	outputs := map[string]domain.NodeOutput{
		"analysis": domain.Ok("node-0", "analysis", nil).WithContent("High risk."),
	}
	ec := testContext(domain.ActionKindSendEmail,
		`{"to":["legal@example.com"],"subject":"Review: {{document.name}}","body":"{{analysis.content}}"}`,
		outputs)

	out := exec.Execute(identityContext(), ec)

	require.True(t, out.Success)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"legal@example.com"}, msg.To)
	assert.Equal(t, "Review: contract.pdf", msg.Subject)
	assert.Equal(t, "High risk.", msg.Body)
	assert.Contains(t, out.Content, "legal@example.com")
}

func TestSendEmailRequiresRequestIdentity(t *testing.T) {
	sender := &fakeSender{}
	exec := NewSendEmailExecutor(sender, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindSendEmail,
		`{"to":["legal@example.com"],"subject":"s","body":"b"}`, nil)

	out := exec.Execute(context.Background(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeInternalError, out.ErrorCode)
	assert.Contains(t, out.ErrorMessage, "request identity")
	assert.Empty(t, sender.sent, "must fail before any send attempt")
}

func TestSendEmailInvalidConfigNeverSends(t *testing.T) {
	sender := &fakeSender{}
	exec := NewSendEmailExecutor(sender, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindSendEmail, `{"to":[],"subject":"s","body":"b"}`, nil)

	out := exec.Execute(identityContext(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeValidationFailed, out.ErrorCode)
	assert.Empty(t, sender.sent)
}

func TestSendEmailPolicyBlocked(t *testing.T) {
	sender := &fakeSender{}
	exec := NewSendEmailExecutor(sender, newTemplates(), denyAllGate{reason: "external recipients not allowed"})
	ec := testContext(domain.ActionKindSendEmail,
		`{"to":["legal@example.com"],"subject":"s","body":"b"}`, nil)

	out := exec.Execute(identityContext(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodePolicyBlocked, out.ErrorCode)
	assert.Contains(t, out.ErrorMessage, "external recipients not allowed")
	assert.Empty(t, sender.sent)
}

func TestSendEmailSenderFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp relay unavailable")}
	exec := NewSendEmailExecutor(sender, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindSendEmail,
		`{"to":["legal@example.com"],"subject":"s","body":"b"}`, nil)

	out := exec.Execute(identityContext(), ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeInternalError, out.ErrorCode)
	assert.Contains(t, out.ErrorMessage, "smtp relay unavailable")
}

func TestSendEmailCancelled(t *testing.T) {
	sender := &fakeSender{}
	exec := NewSendEmailExecutor(sender, newTemplates(), allowAllGate{})
	ec := testContext(domain.ActionKindSendEmail,
		`{"to":["legal@example.com"],"subject":"s","body":"b"}`, nil)

	ctx, cancel := context.WithCancel(identityContext())
	cancel()
	out := exec.Execute(ctx, ec)

	require.False(t, out.Success)
	assert.Equal(t, domain.CodeCancelled, out.ErrorCode)
	assert.Empty(t, sender.sent)
}

func TestSendEmailValidate(t *testing.T) {
	exec := NewSendEmailExecutor(&fakeSender{}, newTemplates(), nil)
	cases := []struct {
		name   string
		config string
		valid  bool
	}{
		{"complete", `{"to":["a@b.c"],"subject":"s","body":"b"}`, true},
		{"no recipients", `{"to":[],"subject":"s","body":"b"}`, false},
		{"blank subject", `{"to":["a@b.c"],"subject":" ","body":"b"}`, false},
		{"blank body", `{"to":["a@b.c"],"subject":"s","body":""}`, false},
		{"empty config", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := testContext(domain.ActionKindSendEmail, tc.config, nil)
			vr := exec.Validate(context.Background(), ec)
			assert.Equal(t, tc.valid, vr.Valid, vr.Message())
		})
	}
}
