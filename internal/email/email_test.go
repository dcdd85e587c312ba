package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatehub/api/internal/config"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	return m.Called(ctx, to, subject, rawMessage).Error(0)
}

func TestBuildMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := string(BuildMessage("noreply@example.com", []string{"a@example.com", "b@example.com"}, "Listing approved", "Hello", at))

	assert.True(t, strings.HasPrefix(msg, "To: a@example.com, b@example.com\r\n"))
	assert.Contains(t, msg, "From: noreply@example.com\r\n")
	assert.Contains(t, msg, "Subject: Listing approved\r\n")
	assert.Contains(t, msg, "Date: Wed, 01 May 2024 12:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nHello\r\n"))
}

func TestCompositeEmailSender(t *testing.T) {
	ok := new(MockSender)
	failing := new(MockSender)
	ok.On("Send", mock.Anything, []string{"a@example.com"}, "Hi", []byte("raw")).Return(nil)
	failing.On("Send", mock.Anything, []string{"a@example.com"}, "Hi", []byte("raw")).Return(errors.New("smtp down"))

	cs := NewCompositeEmailSender(ok)
	cs.AddSender(nil)
	require.NoError(t, cs.Send(context.Background(), []string{"a@example.com"}, "Hi", []byte("raw")))

	cs.AddSender(failing)
	err := cs.Send(context.Background(), []string{"a@example.com"}, "Hi", []byte("raw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	ok.AssertNumberOfCalls(t, "Send", 2)
	failing.AssertExpectations(t)

	assert.Error(t, NewCompositeEmailSender().Send(context.Background(), nil, "", nil))
}

func TestFileEmailSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail", "out.log")
	s, err := NewFileEmailSender(path)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), []string{"a@example.com"}, "Listing rejected", []byte("body text\r\n")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Subject: Listing rejected")
	assert.Contains(t, string(data), "body text")

	_, err = NewFileEmailSender("  ")
	assert.Error(t, err)
}

func TestNewSMTPSender_FallsBackToLogging(t *testing.T) {
	s := NewSMTPSender(&config.Config{SmtpFromAddress: "noreply@example.com"})
	_, isLogging := s.(*LoggingSender)
	assert.True(t, isLogging)
	assert.NoError(t, s.Send(context.Background(), []string{"a@example.com"}, "x", []byte("y")))

	s = NewSMTPSender(&config.Config{SmtpHost: "smtp.example.com", SmtpPort: 587})
	smtpSender, isSMTP := s.(*SMTPSender)
	require.True(t, isSMTP)
	assert.Equal(t, "smtp.example.com:587", smtpSender.addr)
}

func TestSubjectKind(t *testing.T) {
	assert.Equal(t, "listing_approved", SubjectKind("Your listing \"Loft\" was approved"))
	assert.Equal(t, "listing_rejected", SubjectKind("Listing Rejected"))
	assert.Equal(t, "unknown", SubjectKind("Hello"))
	assert.Equal(t, "mockemail:a@example.com:listing_approved", MockEmailKey("a@example.com", "listing_approved"))
}
