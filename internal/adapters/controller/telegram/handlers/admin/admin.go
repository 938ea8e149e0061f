package admin

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/TaiJP119/vet-vetconnect-some/cmd/app"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type reminderPoller interface {
	RunOnce(ctx context.Context) (service.PollReport, error)
}

type userCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Handler struct {
	logger *types.Logger
	poller reminderPoller
	users  userCounter
}

func New(a *app.App) *Handler {
	return &Handler{
		logger: a.Logger.Named("admin"),
		poller: a.Poller,
		users:  a.Users,
	}
}

func (h Handler) AdminSetup(group *tele.Group) {
	group.Handle("/reconcile", h.Reconcile)
	group.Handle("/stats", h.Stats)
}

// Reconcile runs one poll pass right away.
func (h Handler) Reconcile(c tele.Context) error {
	h.logger.Infof("(user: %d) manual reconcile", c.Sender().ID)
	report, err := h.poller.RunOnce(context.Background())
	text := fmt.Sprintf("Reconciled %d user(s), %d event(s), %d swept.\nActions: %v\nTook: %s",
		report.Users, report.Events, report.Swept, report.Actions, report.Duration)
	if err != nil {
		h.logger.Errorf("(user: %d) manual reconcile failed: %v", c.Sender().ID, err)
		text += fmt.Sprintf("\nFailures: %d\n%v", report.Failures, err)
	}
	return c.Send(text)
}

func (h Handler) Stats(c tele.Context) error {
	count, err := h.users.Count(context.Background())
	if err != nil {
		h.logger.Errorf("(user: %d) error while counting users: %v", c.Sender().ID, err)
		return c.Send("Technical issues, please try again later.")
	}
	return c.Send(fmt.Sprintf("Registered users: %d", count))
}
