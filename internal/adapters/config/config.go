package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/broker/kafka"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/broker/rabbitmq"
	postgresStorage "github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/postgres"
	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/redis"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/utils/location"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
)

const (
	FeedRedis    = "redis"
	FeedPostgres = "postgres"
	FeedKafka    = "kafka"
	FeedAMQP     = "amqp"
	FeedNone     = "none"

	TransportTelegram = "telegram"
	TransportSMTP     = "smtp"
)

type Config struct {
	Database *gorm.DB
	// DSN is kept for the LISTEN/NOTIFY connection, which lives outside the gorm pool.
	DSN   string
	Redis *redis.Client

	BotToken string
	AdminIDs []int64

	Reminder Reminder
	Feed     Feed
	Push     Push
	HTTP     HTTP
	Logging  Logging
}

type Reminder struct {
	Window       time.Duration
	PollSchedule string
	PollWorkers  int
	DeliveryTTL  time.Duration
}

type Feed struct {
	Driver  string
	Channel string
	Kafka   kafka.Options
	AMQP    rabbitmq.Options
}

type Push struct {
	Transport  string
	SMTPDialer *gomail.Dialer
	SMTPFrom   string
	SMTPDomain string
}

type HTTP struct {
	Enabled bool
	Listen  string
}

type Logging struct {
	LogToChannel bool
	ChannelID    int64
	ChannelLevel zapcore.Level
}

func initConfig() {
	// Secrets may come from a .env file next to config.yaml, e.g. SERVICE_DATABASE_PASSWORD.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("settings.timezone", "UTC")
	viper.SetDefault("settings.reminder.window", service.DefaultReminderWindow)
	viper.SetDefault("settings.reminder.poll-schedule", service.DefaultPollSchedule)
	viper.SetDefault("settings.reminder.poll-workers", 8)
	viper.SetDefault("settings.reminder.delivery-ttl", service.DefaultDeliveryTTL)
	viper.SetDefault("settings.logging.channel-log-level", int(zapcore.ErrorLevel))
	viper.SetDefault("service.database.port", 5432)
	viper.SetDefault("service.redis.port", 6379)
	viper.SetDefault("service.feed.driver", FeedRedis)
	viper.SetDefault("service.feed.channel", "document_changes")
	viper.SetDefault("service.kafka.group-id", "event-reminders")
	viper.SetDefault("service.amqp.prefetch", 16)
	viper.SetDefault("service.push.transport", TransportTelegram)
	viper.SetDefault("service.smtp.port", 587)
	viper.SetDefault("service.http.enabled", true)
	viper.SetDefault("service.http.listen", ":8080")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
}

func Get() *Config {
	initConfig()

	if err := location.Load(viper.GetString("settings.timezone")); err != nil {
		panic(err)
	}

	err := logger.Init(logger.Config{
		Debug:        viper.GetBool("settings.debug"),
		TimeLocation: location.Location(),
		LogToFile:    viper.GetBool("settings.log-to-file"),
		LogsDir:      viper.GetString("settings.logs-dir"),
	})
	if err != nil {
		panic(err)
	}

	var gormConfig *gorm.Config
	if viper.GetBool("settings.debug") {
		newLogger := gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold: time.Second,
				LogLevel:      gormLogger.Info,
				Colorful:      true,
			},
		)
		gormConfig = &gorm.Config{
			Logger: newLogger,
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Warn),
		}
	}

	dsn := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%d sslmode=%s TimeZone=UTC",
		viper.GetString("service.database.user"),
		viper.GetString("service.database.password"),
		viper.GetString("service.database.name"),
		viper.GetString("service.database.host"),
		viper.GetInt("service.database.port"),
		sslMode(),
	)

	database, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		logger.Log.Panicf("Failed to connect to the database: %v", err)
	} else {
		logger.Log.Info("Successfully connected to the database")
	}

	errMigrate := database.AutoMigrate(postgresStorage.Migrations...)
	if errMigrate != nil {
		logger.Log.Panicf("Failed to migrate database: %v", errMigrate)
	}

	feed := Feed{
		Driver:  viper.GetString("service.feed.driver"),
		Channel: viper.GetString("service.feed.channel"),
	}
	switch feed.Driver {
	case FeedRedis, FeedNone:
	case FeedKafka:
		feed.Kafka = kafka.Options{
			Brokers: viper.GetStringSlice("service.kafka.brokers"),
			Topic:   viper.GetString("service.kafka.topic"),
			GroupID: viper.GetString("service.kafka.group-id"),
		}
	case FeedAMQP:
		feed.AMQP = rabbitmq.Options{
			URL:      viper.GetString("service.amqp.url"),
			Queue:    viper.GetString("service.amqp.queue"),
			Prefetch: viper.GetInt("service.amqp.prefetch"),
		}
	case FeedPostgres:
		if errTriggers := postgresStorage.InstallChangeTriggers(database, feed.Channel); errTriggers != nil {
			logger.Log.Panicf("Failed to install change triggers: %v", errTriggers)
		}
	default:
		logger.Log.Panicf("Unknown feed driver %q", feed.Driver)
	}

	var redisClient *redis.Client
	if viper.GetBool("service.redis.enabled") || feed.Driver == FeedRedis {
		redisLogger, errLogger := logger.Named("redis")
		if errLogger != nil {
			panic(errLogger)
		}
		redisClient, err = redis.New(redis.Options{
			Host:     viper.GetString("service.redis.host"),
			Port:     viper.GetInt("service.redis.port"),
			Password: viper.GetString("service.redis.password"),
			Channel:  feed.Channel,
		}, redisLogger)
		if err != nil {
			logger.Log.Panicf("Failed to connect to redis: %v", err)
		} else {
			logger.Log.Info("Successfully connected to redis")
		}
	}

	push := Push{
		Transport: viper.GetString("service.push.transport"),
	}
	switch push.Transport {
	case TransportTelegram:
		if viper.GetString("bot.token") == "" {
			logger.Log.Panic("Telegram push transport needs bot.token")
		}
	case TransportSMTP:
		push.SMTPDialer = gomail.NewDialer(
			viper.GetString("service.smtp.host"),
			viper.GetInt("service.smtp.port"),
			viper.GetString("service.smtp.email"),
			viper.GetString("service.smtp.password"),
		)
		push.SMTPFrom = viper.GetString("service.smtp.email")
		push.SMTPDomain = viper.GetString("service.smtp.domain")
	default:
		logger.Log.Panicf("Unknown push transport %q", push.Transport)
	}

	admins := viper.GetIntSlice("bot.admin-ids")
	adminIDs := make([]int64, len(admins))
	for i, v := range admins {
		adminIDs[i] = int64(v)
	}

	return &Config{
		Database: database,
		DSN:      dsn,
		Redis:    redisClient,
		BotToken: viper.GetString("bot.token"),
		AdminIDs: adminIDs,
		Reminder: Reminder{
			Window:       viper.GetDuration("settings.reminder.window"),
			PollSchedule: viper.GetString("settings.reminder.poll-schedule"),
			PollWorkers:  viper.GetInt("settings.reminder.poll-workers"),
			DeliveryTTL:  viper.GetDuration("settings.reminder.delivery-ttl"),
		},
		Feed: feed,
		Push: push,
		HTTP: HTTP{
			Enabled: viper.GetBool("service.http.enabled"),
			Listen:  viper.GetString("service.http.listen"),
		},
		Logging: Logging{
			LogToChannel: viper.GetBool("settings.logging.log-to-channel"),
			ChannelID:    viper.GetInt64("settings.logging.channel-id"),
			ChannelLevel: zapcore.Level(viper.GetInt("settings.logging.channel-log-level")),
		},
	}
}

func sslMode() string {
	if mode := viper.GetString("service.database.sslmode"); mode != "" {
		return mode
	}
	return "disable"
}
