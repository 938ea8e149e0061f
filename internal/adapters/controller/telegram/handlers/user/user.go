package user

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/mail"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/TaiJP119/vet-vetconnect-some/cmd/app"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/config"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/utils/calendar"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/utils/location"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type userService interface {
	Register(ctx context.Context, id int64, firstName, username, deviceToken string) (*entity.User, error)
}

type notificationService interface {
	Reminders(ctx context.Context, userID int64) ([]entity.Notification, error)
	MarkRead(ctx context.Context, userID int64, notifications []entity.Notification) error
}

type eventService interface {
	Upcoming(ctx context.Context, userID int64, window time.Duration) ([]entity.Event, error)
}

type Handler struct {
	logger              *types.Logger
	userService         userService
	notificationService notificationService
	eventService        eventService

	transport string
	window    time.Duration
}

func New(a *app.App) *Handler {
	return &Handler{
		logger:              a.Logger.Named("user"),
		userService:         a.Users,
		notificationService: a.Notifications,
		eventService:        a.Events,
		transport:           a.Config.Push.Transport,
		window:              a.Config.Reminder.Window,
	}
}

// Start registers the sender. With the telegram transport the chat itself is the device;
// with smtp the address comes as the command payload: /start name@example.com
func (h Handler) Start(c tele.Context) error {
	token, err := h.deviceToken(c)
	if err != nil {
		return c.Send(err.Error())
	}

	sender := c.Sender()
	if _, err = h.userService.Register(context.Background(), sender.ID, sender.FirstName, sender.Username, token); err != nil {
		h.logger.Errorf("(user: %d) error while registering user: %v", sender.ID, err)
		return c.Send("Technical issues, please try again later.")
	}

	h.logger.Infof("(user: %d) registered", sender.ID)
	return c.Send("You are registered. Use /reminders to see upcoming event reminders.")
}

func (h Handler) deviceToken(c tele.Context) (string, error) {
	if h.transport != config.TransportSMTP {
		return strconv.FormatInt(c.Chat().ID, 10), nil
	}
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		// Re-registering without an address keeps the stored one.
		return "", nil
	}
	addr, err := mail.ParseAddress(payload)
	if err != nil {
		return "", fmt.Errorf("invalid email address: %s", payload)
	}
	return addr.Address, nil
}

// Reminders lists the sender's reminders and marks them read.
func (h Handler) Reminders(c tele.Context) error {
	userID := c.Sender().ID
	reminders, err := h.notificationService.Reminders(context.Background(), userID)
	if err != nil {
		h.logger.Errorf("(user: %d) error while getting reminders: %v", userID, err)
		return c.Send("Technical issues, please try again later.")
	}
	if len(reminders) == 0 {
		return c.Send("No upcoming event reminders.")
	}

	if err = c.Send(FormatReminders(reminders), tele.ModeHTML); err != nil {
		return err
	}
	if err = h.notificationService.MarkRead(context.Background(), userID, reminders); err != nil {
		h.logger.Errorf("(user: %d) error while marking reminders read: %v", userID, err)
	}
	return nil
}

// Calendar sends the sender's events of the reminder window as an .ics file.
func (h Handler) Calendar(c tele.Context) error {
	userID := c.Sender().ID
	events, err := h.eventService.Upcoming(context.Background(), userID, h.window)
	if err != nil {
		h.logger.Errorf("(user: %d) error while getting upcoming events: %v", userID, err)
		return c.Send("Technical issues, please try again later.")
	}
	if len(events) == 0 {
		return c.Send("No upcoming events.")
	}

	data, err := calendar.ExportEventsToICS(events, h.window, time.Now())
	if err != nil {
		h.logger.Errorf("(user: %d) error while exporting calendar: %v", userID, err)
		return c.Send("Technical issues, please try again later.")
	}
	return c.Send(&tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: "events.ics",
		MIME:     "text/calendar",
	})
}

// FormatReminders renders reminders as an HTML list, unread ones marked with a dot.
func FormatReminders(reminders []entity.Notification) string {
	var b strings.Builder
	b.WriteString("<b>Upcoming events</b>\n")
	for _, n := range reminders {
		mark := "  "
		if !n.IsRead {
			mark = "• "
		}
		fmt.Fprintf(&b, "%s%s  <i>%s</i>\n",
			mark,
			html.EscapeString(n.EventTitle),
			n.EventDate.In(location.Location()).Format("02.01.2006 15:04"),
		)
	}
	return b.String()
}
