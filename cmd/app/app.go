package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"
	"gorm.io/gorm"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/broker/kafka"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/broker/rabbitmq"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/config"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/transport"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/trigger"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/postgres"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/redis"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/push"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/smtp"
)

// changeSource delivers raw change messages until ctx is done.
type changeSource interface {
	Listen(ctx context.Context, handle func(ctx context.Context, payload []byte)) error
}

type pushGateway interface {
	Send(ctx context.Context, deviceToken, title, body string) error
}

// App is the process-wide handle. Everything that needs the database, redis or the bot gets it from here.
type App struct {
	Bot    *tele.Bot
	DB     *gorm.DB
	Redis  *redis.Client
	Logger *types.Logger
	Config *config.Config

	Users         *service.UserService
	Events        *service.EventService
	Notifications *service.NotificationService
	Reminders     *service.ReminderService
	Poller        *service.PollService
	Reports       *service.ReportNotifier
	Dispatcher    *trigger.Dispatcher
}

func New(cfg *config.Config) (*App, error) {
	appLogger, err := logger.Named("app")
	if err != nil {
		return nil, err
	}

	var bot *tele.Bot
	if cfg.BotToken != "" {
		bot, err = tele.NewBot(tele.Settings{
			Token:  cfg.BotToken,
			Poller: &tele.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c tele.Context) {
				if c != nil && c.Sender() != nil {
					appLogger.Errorf("(user: %d) | Error: %v", c.Sender().ID, err)
					return
				}
				appLogger.Errorf("Telegram error: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
	}

	var gateway pushGateway
	switch cfg.Push.Transport {
	case config.TransportSMTP:
		gateway = push.NewEmailGateway(smtp.NewClient(cfg.Push.SMTPDialer, cfg.Push.SMTPFrom, cfg.Push.SMTPDomain))
	default:
		if bot == nil {
			return nil, fmt.Errorf("telegram push transport needs a bot token")
		}
		gateway = push.NewTelegramGateway(bot)
	}

	userStorage := postgres.NewUserStorage(cfg.Database)
	eventStorage := postgres.NewEventStorage(cfg.Database)
	notificationStorage := postgres.NewNotificationStorage(cfg.Database)

	reminders := service.NewReminderService(appLogger.Named("reminder"), notificationStorage, cfg.Reminder.Window)
	events := service.NewEventService(eventStorage)

	var reports *service.ReportNotifier
	if cfg.Redis != nil {
		reports = service.NewReportNotifier(appLogger.Named("report"), userStorage, cfg.Redis.Deliveries, gateway, cfg.Reminder.DeliveryTTL)
	} else {
		reports = service.NewReportNotifier(appLogger.Named("report"), userStorage, nil, gateway, cfg.Reminder.DeliveryTTL)
	}

	return &App{
		Bot:    bot,
		DB:     cfg.Database,
		Redis:  cfg.Redis,
		Logger: appLogger,
		Config: cfg,

		Users:         service.NewUserService(userStorage),
		Events:        events,
		Notifications: service.NewNotificationService(notificationStorage),
		Reminders:     reminders,
		Poller: service.NewPollService(
			appLogger.Named("poll"),
			userStorage,
			eventStorage,
			notificationStorage,
			reminders,
			cfg.Reminder.PollWorkers,
		),
		Reports:    reports,
		Dispatcher: trigger.NewDispatcher(appLogger.Named("trigger"), reminders, events, reports),
	}, nil
}

// Start runs the poll, the change feed, the HTTP server and the bot until ctx is done.
func (a *App) Start(ctx context.Context) error {
	if err := a.Poller.Start(ctx, a.Config.Reminder.PollSchedule); err != nil {
		return err
	}

	var wg sync.WaitGroup

	source, err := a.changeSource()
	if err != nil {
		return err
	}
	if source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if err := source.Listen(ctx, a.Dispatcher.HandlePayload); err != nil {
					a.Logger.Errorf("Change feed stopped: %v", err)
				}
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Second):
				}
			}
		}()
	}

	if a.Config.HTTP.Enabled {
		srv := transport.NewServer(a.Config.HTTP.Listen, transport.InitRoutes(a.Logger.Named("http"), a.Dispatcher, a.Poller), a.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				a.Logger.Errorf("HTTP server stopped: %v", err)
			}
		}()
	}

	if a.Bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Logger.Info("Bot starting")
			a.Bot.Start()
		}()
		go func() {
			<-ctx.Done()
			a.Bot.Stop()
		}()
	}

	<-ctx.Done()
	wg.Wait()
	a.close()
	return nil
}

func (a *App) changeSource() (changeSource, error) {
	feed := a.Config.Feed
	switch feed.Driver {
	case config.FeedRedis:
		return a.Redis.Feed, nil
	case config.FeedPostgres:
		return postgres.NewListener(a.Config.DSN, feed.Channel, a.Logger.Named("listener")), nil
	case config.FeedKafka:
		return kafka.NewConsumer(feed.Kafka, a.Logger.Named("kafka"))
	case config.FeedAMQP:
		return rabbitmq.NewConsumer(feed.AMQP, a.Logger.Named("amqp"))
	default:
		a.Logger.Info("Change feed disabled, relying on webhook and poll")
		return nil, nil
	}
}

func (a *App) close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Errorf("Failed to close redis: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err = sqlDB.Close(); err != nil {
			a.Logger.Errorf("Failed to close database: %v", err)
		}
	}
	_ = a.Logger.Sync()
}
