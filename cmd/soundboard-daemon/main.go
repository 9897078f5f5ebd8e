package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"golang.org/x/sync/errgroup"

	"soundboard/internal/audio"
	"soundboard/internal/board"
	"soundboard/internal/config"
	"soundboard/internal/events"
	"soundboard/internal/ipc"
	"soundboard/internal/library"
	"soundboard/internal/routing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load("soundboard-daemon", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "soundboard-daemon:", err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cfg.Level(),
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	if err := run(cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := routing.New(routing.Config{
		Pactl:            cfg.Pactl,
		SinkName:         cfg.SinkName,
		MicName:          cfg.MicName,
		AppPattern:       cfg.AppPattern,
		LoopbackLatency:  time.Duration(cfg.LoopbackLatency) * time.Millisecond,
		MaintainInterval: cfg.MaintainInterval,
		CommandTimeout:   cfg.CommandTimeout,
	}, routing.WithLogger(log.With("component", "routing")))
	if err != nil {
		return err
	}

	log.Debug("Loaded routing controller")

	duckCfg := routing.DefaultDuckConfig()
	duckCfg.Factor = cfg.DuckFactor
	duckCfg.FadeOut = cfg.DuckFadeOut
	duckCfg.FadeIn = cfg.DuckFadeIn
	ducker := router.NewDucker(duckCfg)

	engine, err := audio.Init(audio.Config{
		SampleRate: cfg.SampleRate,
		Buffer:     cfg.Buffer,
	},
		audio.WithLogger(log.With("component", "audio")),
		audio.WithActivityHook(ducker.Track),
	)
	if err != nil {
		return err
	}

	log.Debug("Loaded audio engine")

	lib := library.New(library.WithLogger(log.With("component", "library")))
	hub := events.NewHub(cfg.EventQueue, log.With("component", "events"))

	b := board.New(ctx, engine, router, lib,
		board.WithLogger(log.With("component", "board")),
		board.WithPublisher(hub),
		board.WithCleanupOnExit(cfg.CleanupOnExit),
	)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.Shutdown(sctx); err != nil {
			log.Warn("Shutdown incomplete", "err", err)
		}
		log.Info("Bye")
	}()

	if cfg.Folder != "" {
		if _, err := b.LoadFolder(cfg.Folder); err != nil {
			log.Warn("Failed to load folder", "dir", cfg.Folder, "err", err)
		}
	}

	if cfg.SetupOnStart {
		if sink, err := b.SetupVirtualMicrophone(ctx); err != nil {
			log.Warn("Virtual microphone setup failed", "err", err)
		} else {
			log.Info("Virtual microphone ready", "sink", sink)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := ipc.NewServer(cfg.Socket, b.Handle, log.With("component", "ipc"))
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if ducker.Enabled() {
		g.Go(func() error {
			ducker.Run(gctx)
			return nil
		})
	}

	if cfg.Watch {
		g.Go(func() error {
			return lib.Watch(gctx, func() {
				hub.Publish(events.StateChanged("sounds"))
			})
		})
	}

	if cfg.EventsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		httpSrv := &http.Server{
			Addr:              cfg.EventsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("Event stream listening", "addr", cfg.EventsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("events: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			hub.Close()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	log.Info("Boot up - successful")

	return g.Wait()
}
