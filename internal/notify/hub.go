package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("notifier not configured")

const defaultTimeout = 10 * time.Second

// Message goes to Telegram, and to mail as well when Subject is set.
type Message struct {
	Subject string
	Text    string
	// MailBody replaces Text in the mail when set.
	MailBody string
}

func (m Message) mailBody() string {
	if m.MailBody != "" {
		return m.MailBody
	}
	return m.Text
}

type Messenger interface {
	Configured() bool
	Send(ctx context.Context, text string) error
}

// Hub fans messages out to the configured channels in the background. Failures
// are logged and never reach the caller.
type Hub struct {
	messenger Messenger
	mail      EmailSender
	mailTo    string
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewHub(messenger Messenger, mail EmailSender, mailTo string) *Hub {
	return &Hub{messenger: messenger, mail: mail, mailTo: mailTo, timeout: defaultTimeout}
}

func (h *Hub) Notify(ctx context.Context, msg Message) {
	sendTG := h.messenger != nil && h.messenger.Configured()
	sendMail := msg.Subject != "" && h.mailTo != "" && h.mail != nil && h.mail.Configured()
	if !sendTG && !sendMail {
		return
	}
	base := context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		logger := logutil.GetLogger(base)
		if sendTG {
			tctx, cancel := context.WithTimeout(base, h.timeout)
			if err := h.messenger.Send(tctx, msg.Text); err != nil {
				logger.Warn("send telegram notification failed", zap.Error(err))
			}
			cancel()
		}
		if sendMail {
			mctx, cancel := context.WithTimeout(base, h.timeout)
			if err := h.mail.Send(mctx, h.mailTo, msg.Subject, msg.mailBody()); err != nil {
				logger.Warn("send mail notification failed", zap.Error(err))
			}
			cancel()
		}
	}()
}

// Wait blocks until every queued delivery has finished.
func (h *Hub) Wait() {
	h.wg.Wait()
}
