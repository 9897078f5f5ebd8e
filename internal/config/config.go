package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
)

const EnvPrefix = "SOUNDBOARD_"

// Config is the daemon configuration. Values come from the .env file, then
// SOUNDBOARD_* variables, then command-line flags.
type Config struct {
	LogLevel string `env:"LOG" envDefault:"info"`

	Socket     string `env:"SOCKET" envDefault:"/tmp/soundboard.sock"`
	EventsAddr string `env:"EVENTS_ADDR" envDefault:"127.0.0.1:8093"`
	EventQueue int    `env:"EVENT_QUEUE" envDefault:"32"`

	Folder string `env:"FOLDER"`
	Watch  bool   `env:"WATCH" envDefault:"true"`

	SampleRate int           `env:"SAMPLE_RATE" envDefault:"44100"`
	Buffer     time.Duration `env:"BUFFER" envDefault:"100ms"`

	Pactl            string        `env:"PACTL" envDefault:"pactl"`
	SinkName         string        `env:"SINK_NAME" envDefault:"Soundboard_Mix"`
	MicName          string        `env:"MIC_NAME" envDefault:"SoundboardMic"`
	AppPattern       string        `env:"APP_PATTERN" envDefault:"soundboard"`
	LoopbackLatency  int           `env:"LOOPBACK_LATENCY_MS" envDefault:"1"`
	MaintainInterval time.Duration `env:"MAINTAIN_INTERVAL" envDefault:"1s"`
	CommandTimeout   time.Duration `env:"COMMAND_TIMEOUT" envDefault:"5s"`
	SetupOnStart     bool          `env:"SETUP_ON_START" envDefault:"false"`
	CleanupOnExit    bool          `env:"CLEANUP_ON_EXIT" envDefault:"true"`

	// A factor of 1 or more disables ducking.
	DuckFactor  float64       `env:"DUCK_FACTOR" envDefault:"1.0"`
	DuckFadeOut time.Duration `env:"DUCK_FADE_OUT" envDefault:"150ms"`
	DuckFadeIn  time.Duration `env:"DUCK_FADE_IN" envDefault:"400ms"`
}

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level maps LogLevel onto slog, defaulting to info.
func (c Config) Level() slog.Level {
	if l, ok := logLevelMap[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

func (c Config) Validate() error {
	if _, ok := logLevelMap[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Buffer <= 0 {
		return fmt.Errorf("buffer must be positive, got %s", c.Buffer)
	}
	if c.SinkName == "" || c.MicName == "" {
		return errors.New("sink and mic names must be set")
	}
	if c.MaintainInterval <= 0 {
		return fmt.Errorf("maintain interval must be positive, got %s", c.MaintainInterval)
	}
	return nil
}

// Load parses args (without the program name) and the environment.
func Load(name string, args []string) (Config, error) {
	flags := cli.NewFlagSet(name, cli.ContinueOnError)
	envFile := flags.StringP("env", "e", ".env", "Env file path")
	logLevel := flags.StringP("log", "l", "info", "Log level")
	socket := flags.StringP("socket", "s", "", "IPC socket path")
	events := flags.StringP("events", "w", "", "Event stream listen address, empty to disable")
	folder := flags.StringP("folder", "f", "", "Sound folder to load at startup")
	setup := flags.Bool("setup", false, "Create the virtual microphone at startup")
	duck := flags.Float64("duck", 1.0, "Volume factor for other apps while clips play")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if flags.Changed("log") {
		cfg.LogLevel = *logLevel
	}
	if flags.Changed("socket") {
		cfg.Socket = *socket
	}
	if flags.Changed("events") {
		cfg.EventsAddr = *events
	}
	if flags.Changed("folder") {
		cfg.Folder = *folder
	}
	if flags.Changed("setup") {
		cfg.SetupOnStart = *setup
	}
	if flags.Changed("duck") {
		cfg.DuckFactor = *duck
	}

	return cfg, cfg.Validate()
}
