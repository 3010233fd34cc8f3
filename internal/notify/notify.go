// Package notify sends email notifications. Lifecycle notifications are fire
// and forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yukikurage/hive/internal/logger"
	"github.com/yukikurage/hive/internal/models"
)

const sendTimeout = 30 * time.Second

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Notifier struct {
	mailer Mailer
	log    *logger.Logger
	wg     sync.WaitGroup
}

func NewNotifier(mailer Mailer, log *logger.Logger) *Notifier {
	return &Notifier{mailer: mailer, log: log}
}

// Send delivers msg and returns the mailer error.
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Dispatch delivers msg in the background.
func (n *Notifier) Dispatch(msg Message) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := n.Send(ctx, msg); err != nil {
			n.log.Warn("notification not delivered", "to", msg.To, "subject", msg.Subject, "error", err)
		}
	}()
}

// Close waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.wg.Wait()
}

func (n *Notifier) QueryAssigned(assignee *models.Member, query *models.Query) {
	n.Dispatch(Message{
		To:      assignee.Email,
		Subject: fmt.Sprintf("Query #%d assigned to you", query.ID),
		Body: fmt.Sprintf("Hi %s,\n\nQuery #%d has been assigned to you:\n\n%s\n",
			assignee.Name, query.ID, query.Issue),
	})
}

func (n *Notifier) QueryClosed(asker *models.Member, query *models.Query) {
	verb := "resolved"
	if query.Status == models.QueryStatusDismantled {
		verb = "dismantled"
	}
	n.Dispatch(Message{
		To:      asker.Email,
		Subject: fmt.Sprintf("Your query #%d was %s", query.ID, verb),
		Body: fmt.Sprintf("Hi %s,\n\nYour query\n\n%s\n\nwas %s.\n\n%s\n",
			asker.Name, query.Issue, verb, query.Reply),
	})
}

// OTPMessage builds the email carrying a one-time code.
func OTPMessage(email, code string, ttl time.Duration) Message {
	return Message{
		To:      email,
		Subject: "Your HIVE verification code",
		Body: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n",
			code, int(ttl.Minutes())),
	}
}
