package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"soundboard/internal/events"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	url := cli.StringP("url", "u", "ws://127.0.0.1:8093/ws", "Url of the daemon event stream")
	reconn := cli.DurationP("reconnect", "r", time.Second, "Delay between reconnect attempts")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := events.NewClient(*url, *reconn, log.Default())
	err := client.Run(ctx, func(ev events.Event) {
		switch ev.Kind {
		case events.KindSoundPlayed:
			log.Info("Played", "sound", ev.Message, "id", ev.SoundID)
		case events.KindStateChanged:
			log.Info("State changed", "what", ev.Message)
		default:
			log.Debug("Event", "kind", ev.Kind, "msg", ev.Message)
		}
	})
	if err != nil {
		log.Error("Event stream failed", "err", err)
		os.Exit(1)
	}
}
