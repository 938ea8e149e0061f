package setup

import (
	"fmt"
	"html"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"github.com/TaiJP119/vet-vetconnect-some/cmd/app"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/telegram/handlers/admin"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/telegram/handlers/middlewares"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/telegram/handlers/user"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

func Setup(a *app.App) {
	b := a.Bot
	if b == nil {
		a.Logger.Info("No bot token, telegram surface disabled")
		return
	}

	middle := middlewares.New(a)
	userHandler := user.New(a)
	adminHandler := admin.New(a)

	if viper.GetBool("settings.debug") {
		b.Use(middleware.Logger())
	}
	b.Use(middleware.AutoRespond())

	//User:
	b.Handle("/start", userHandler.Start)
	b.Handle("/reminders", userHandler.Reminders, middle.Registered)
	b.Handle("/calendar", userHandler.Calendar, middle.Registered)

	//Admin:
	adminGroup := b.Group()
	adminGroup.Use(middleware.Whitelist(a.Config.AdminIDs...))
	adminHandler.AdminSetup(adminGroup)

	if a.Config.Logging.LogToChannel {
		hook, err := LogHook(b, a.Logger, a.Config.Logging.ChannelID, a.Config.Logging.ChannelLevel)
		if err != nil {
			a.Logger.Errorf("Failed to set up log channel %d: %v", a.Config.Logging.ChannelID, err)
			return
		}
		logger.SetLogHook(hook)
	}
}

// LogHook returns a log hook forwarding entries at or above level to the channel.
func LogHook(b *tele.Bot, log *types.Logger, channelID int64, level zapcore.Level) (types.LogHook, error) {
	chat, err := b.ChatByID(channelID)
	if err != nil {
		return nil, err
	}
	return func(entry types.Log) {
		if entry.Level < level {
			return
		}
		// Sending from the hook itself must not block the logging call.
		go func() {
			_, errSend := b.Send(chat, formatLog(entry), tele.ModeHTML)
			if errSend != nil && !strings.Contains(entry.Message, "failed to send log to channel") {
				log.Errorf("failed to send log to channel %d: %v", channelID, errSend)
			}
		}()
	}, nil
}

func formatLog(entry types.Log) string {
	return fmt.Sprintf("<b>%s</b> %s\n<code>%s</code>\n%s",
		entry.Level.CapitalString(),
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		html.EscapeString(entry.LoggerName+" "+entry.Caller),
		html.EscapeString(entry.Message),
	)
}
