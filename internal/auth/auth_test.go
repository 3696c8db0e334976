package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mgrankin/accountd/internal/config"
)

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

// mockSender records every delivery; setting err makes the next sends fail.
type mockSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockSender) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mockSender) last() *sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}
	return &m.sent[len(m.sent)-1]
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)
	return logger
}

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Auth: config.AuthConfig{
			JWTSecret:           "test-secret-key",
			SessionDuration:     24 * time.Hour,
			VerificationEnabled: true,
		},
		Links: config.LinksConfig{
			VerificationBaseURL:  "https://accounts.test",
			ResetPasswordBaseURL: "https://accounts.test",
		},
	}
}

type testEnv struct {
	cfg    *config.AppConfig
	repo   *mockRepository
	sender *mockSender
	svc    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	cfg := newTestConfig()
	repo := newMockRepository()
	sender := &mockSender{}

	return &testEnv{
		cfg:    cfg,
		repo:   repo,
		sender: sender,
		svc:    NewService(cfg, newTestLogger(t), repo, sender),
	}
}
