package delivery

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

// MailerSendTransport delivers verification codes by email through the
// MailerSend API.
type MailerSendTransport struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	timeout time.Duration
}

func NewMailerSendTransport(apiKey, fromName, fromEmail string) *MailerSendTransport {
	return &MailerSendTransport{
		client:  mailersend.NewMailersend(apiKey),
		from:    mailersend.From{Name: fromName, Email: fromEmail},
		timeout: 10 * time.Second,
	}
}

func (t *MailerSendTransport) Send(ctx context.Context, destination, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg := t.client.Email.NewMessage()
	msg.SetFrom(t.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: destination}})
	msg.SetSubject("Tu código de verificación")
	msg.SetText(fmt.Sprintf("Tu código de verificación es %s. Expira en 10 minutos.", code))
	msg.SetHTML(fmt.Sprintf("<p>Tu código de verificación es <b>%s</b>.</p><p>Expira en 10 minutos.</p>", code))

	res, err := t.client.Email.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("send verification email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return res.Header.Get("X-Message-Id"), nil
}
