package testutil

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/yukikurage/hive/internal/notify"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// Mailer records every message it is asked to send. Set Fail to make
// deliveries error.
type Mailer struct {
	mu   sync.Mutex
	sent []notify.Message
	Fail bool
}

func (m *Mailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *Mailer) Sent() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}

// LastCode extracts the verification code from the newest message to addr.
func (m *Mailer) LastCode(addr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			return codePattern.FindString(m.sent[i].Body)
		}
	}
	return ""
}
