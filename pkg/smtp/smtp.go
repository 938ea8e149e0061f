package smtp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Client is a mail client.
type Client struct {
	dialer *gomail.Dialer
	from   string
	domain string
}

// NewClient creates a Client sending as from. domain is used for Message-ID headers.
func NewClient(dialer *gomail.Dialer, from, domain string) *Client {
	return &Client{
		dialer: dialer,
		from:   from,
		domain: domain,
	}
}

// Send sends a plain text message.
func (c *Client) Send(to, subject, body string) error {
	msg := gomail.NewMessage()

	msg.SetHeader("Message-ID", generateMessageID(c.domain))
	msg.SetHeader("Date", time.Now().Format(time.RFC1123Z))
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return c.dialer.DialAndSend(msg)
}

func generateMessageID(domain string) string {
	uniqueID := uuid.New().String()
	return fmt.Sprintf("<%s@%s>", uniqueID, domain)
}
