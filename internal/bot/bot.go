package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/app"
)

type Bot struct {
	config  *Config
	service *app.Service
	api     *tgbotapi.BotAPI
	admins  map[int64]bool
	tokens  *app.TokenManager
}

func New(config *Config, service *app.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	admins := make(map[int64]bool)
	for _, id := range config.Bot.AdminIDs {
		admins[id] = true
	}

	var tokens *app.TokenManager
	if config.Auth.Enabled {
		opt, err := redis.ParseURL(config.Auth.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		tokens = app.NewTokenManager(redis.NewClient(opt))
	}

	return &Bot{
		config:  config,
		service: service,
		api:     api,
		admins:  admins,
		tokens:  tokens,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			if b.tokens != nil {
				if err := b.tokens.Close(); err != nil {
					logger.Error.Printf("Failed to close token manager: %v", err)
				}
			}
			return nil
		}
	}
}
