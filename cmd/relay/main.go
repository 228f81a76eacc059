package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"chag-go/internal/relay"
	"chag-go/pkg/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	cfg, err := relay.LoadConfig(*envFile)
	if err != nil {
		panic(err)
	}
	log.Init(cfg.LogLevel, cfg.LogFormat, "")
	defer log.Sync()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("failed to create telegram bot", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay.Run(ctx, bot, relay.New(cfg, bot, nil))
}
