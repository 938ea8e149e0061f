package push

import (
	"context"
	"fmt"
	"strings"
)

type mailSender interface {
	Send(to, subject, body string) error
}

// EmailGateway delivers pushes by e-mail. The device token is an address.
type EmailGateway struct {
	client mailSender
}

func NewEmailGateway(client mailSender) *EmailGateway {
	return &EmailGateway{
		client: client,
	}
}

func (g *EmailGateway) Send(ctx context.Context, deviceToken, title, body string) error {
	if !strings.Contains(deviceToken, "@") {
		return fmt.Errorf("invalid e-mail address %q", deviceToken)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.client.Send(deviceToken, title, body)
}
