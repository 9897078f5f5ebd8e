package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrRouting      = errors.New("routing failed")
	ErrPrecondition = errors.New("precondition failed")
)

const defaultMonitor = "@DEFAULT_MONITOR@"

type Config struct {
	Pactl            string
	SinkName         string
	SinkDescription  string
	MicName          string
	MicDescription   string
	AppPattern       string
	LoopbackLatency  time.Duration
	MaintainInterval time.Duration
	CommandTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Pactl:            "pactl",
		SinkName:         "Soundboard_Mix",
		SinkDescription:  "Soundboard Mix",
		MicName:          "SoundboardMic",
		MicDescription:   "Soundboard Virtual Microphone",
		AppPattern:       "soundboard",
		LoopbackLatency:  time.Millisecond,
		MaintainInterval: time.Second,
		CommandTimeout:   5 * time.Second,
	}
}

type Option func(*Controller)

func WithRunner(r Runner) Option {
	return func(c *Controller) { c.run = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPID sets the process id whose streams count as our own.
func WithPID(pid int) Option {
	return func(c *Controller) { c.pid = pid }
}

// Controller builds the mix sink / virtual mic graph in the audio server.
// The server's module listing is the only record of what exists; nothing
// here caches module ids.
type Controller struct {
	cfg Config
	run Runner
	log *slog.Logger
	app *regexp.Regexp
	pid int

	// serialises in-process graph mutations
	mu sync.Mutex

	loopMu   sync.Mutex
	stop     chan struct{}
	loopDone chan struct{}
}

func New(cfg Config, opts ...Option) (*Controller, error) {
	def := DefaultConfig()
	if cfg.Pactl == "" {
		cfg.Pactl = def.Pactl
	}
	if cfg.SinkName == "" {
		cfg.SinkName = def.SinkName
	}
	if cfg.SinkDescription == "" {
		cfg.SinkDescription = def.SinkDescription
	}
	if cfg.MicName == "" {
		cfg.MicName = def.MicName
	}
	if cfg.MicDescription == "" {
		cfg.MicDescription = def.MicDescription
	}
	if cfg.AppPattern == "" {
		cfg.AppPattern = def.AppPattern
	}
	if cfg.LoopbackLatency <= 0 {
		cfg.LoopbackLatency = def.LoopbackLatency
	}
	if cfg.MaintainInterval <= 0 {
		cfg.MaintainInterval = def.MaintainInterval
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}

	app, err := regexp.Compile("(?i)" + cfg.AppPattern)
	if err != nil {
		return nil, fmt.Errorf("app pattern %q: %w", cfg.AppPattern, err)
	}

	c := &Controller{
		cfg: cfg,
		run: ExecRunner{},
		log: slog.Default(),
		app: app,
		pid: os.Getpid(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Controller) SinkName() string { return c.cfg.SinkName }

func (c *Controller) MicName() string { return c.cfg.MicName }

func (c *Controller) monitor() string { return c.cfg.SinkName + ".monitor" }

// Setup tears down any previous graph and builds a fresh one: mix sink,
// virtual mic on the sink's monitor, and a loopback from the default
// capture device into the sink. A failure part way leaves a partial graph;
// Cleanup removes it.
func (c *Controller) Setup(ctx context.Context) error {
	c.StopMaintenance()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(ctx)

	res, err := c.pactl(ctx,
		"load-module", "module-null-sink",
		"sink_name="+c.cfg.SinkName,
		fmt.Sprintf("sink_properties=device.description=%q", c.cfg.SinkDescription),
	)
	if err != nil {
		return fmt.Errorf("create mix sink: %w", err)
	}
	if !res.OK() {
		c.log.Warn("Mix sink creation reported failure", "sink", c.cfg.SinkName, "stderr", res.stderr())
	}

	res, err = c.pactl(ctx,
		"load-module", "module-remap-source",
		"source_name="+c.cfg.MicName,
		"master="+c.monitor(),
		fmt.Sprintf("source_properties=device.description=%q", c.cfg.MicDescription),
	)
	if err != nil {
		return fmt.Errorf("create virtual microphone: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: create virtual mic: %s", ErrRouting, res.stderr())
	}

	src, err := c.DefaultSource(ctx)
	if err != nil {
		return fmt.Errorf("mic loopback: %w", err)
	}
	if src == "" {
		c.log.Warn("No default capture device, skipping mic loopback")
	} else if err := c.createLoopback(ctx, src); err != nil {
		c.log.Warn("Mic loopback failed", "source", src, "err", err)
	}

	c.log.Info("Virtual microphone ready", "mic", c.cfg.MicName, "sink", c.cfg.SinkName, "source", src)

	return nil
}

// RouteApplicationAudio moves every stream of this application into the mix
// sink. Streams created later are not affected; see StartMaintenance.
func (c *Controller) RouteApplicationAudio(ctx context.Context) (int, error) {
	streams, err := c.listStreams(ctx)
	if err != nil {
		return 0, err
	}
	mix, err := c.mixSinkIndex(ctx)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, s := range streams {
		if !c.isSelf(s) || (mix >= 0 && s.Sink == mix) {
			continue
		}

		res, err := c.pactl(ctx, "move-sink-input", strconv.Itoa(s.ID), c.cfg.SinkName)
		if err != nil || !res.OK() {
			c.log.Debug("Failed to move sink input", "id", s.ID, "err", err, "stderr", res.stderr())
			continue
		}
		moved++
	}

	return moved, nil
}

// ToggleSystemAudioRouting adds a loopback from the default output monitor
// into the mix, or removes every loopback and restores only the mic one.
// Loopback identities are not tracked, so disabling briefly drops the mic
// passthrough too.
func (c *Controller) ToggleSystemAudioRouting(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled {
		exists, err := c.CheckVirtualMicExists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: virtual microphone not set up", ErrPrecondition)
		}
		return c.createLoopback(ctx, defaultMonitor)
	}

	if err := c.removeAllLoopbacks(ctx); err != nil {
		return err
	}

	exists, err := c.CheckVirtualMicExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		src, err := c.DefaultSource(ctx)
		if err != nil {
			c.log.Warn("Cannot restore mic loopback", "err", err)
			return nil
		}
		if err := c.createLoopback(ctx, src); err != nil {
			c.log.Warn("Cannot restore mic loopback", "source", src, "err", err)
		}
	}

	return nil
}

func (c *Controller) CheckVirtualMicExists(ctx context.Context) (bool, error) {
	sources, err := c.ListSources(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(sources, c.cfg.MicName), nil
}

func (c *Controller) ListSources(ctx context.Context) ([]string, error) {
	out, err := c.query(ctx, "list", "sources", "short")
	if err != nil {
		return nil, err
	}
	return parseShortNames(out), nil
}

func (c *Controller) ListSinks(ctx context.Context) ([]string, error) {
	out, err := c.query(ctx, "list", "sinks", "short")
	if err != nil {
		return nil, err
	}
	return parseShortNames(out), nil
}

// mixSinkIndex is the server index of the mix sink, or -1 when it is not
// loaded.
func (c *Controller) mixSinkIndex(ctx context.Context) (int, error) {
	out, err := c.query(ctx, "list", "sinks", "short")
	if err != nil {
		return -1, err
	}
	return shortIndex(out, c.cfg.SinkName), nil
}

func (c *Controller) DefaultSource(ctx context.Context) (string, error) {
	out, err := c.query(ctx, "get-default-source")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Controller) SetDefaultSource(ctx context.Context, source string) error {
	_, err := c.query(ctx, "set-default-source", source)
	return err
}

// Cleanup stops maintenance and unloads every module that mentions the
// reserved sink or mic names, then every loopback module. Failures are
// logged and otherwise ignored.
func (c *Controller) Cleanup(ctx context.Context) {
	c.StopMaintenance()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked(ctx)
}

// Close runs Cleanup with its own timeout.
func (c *Controller) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*c.cfg.CommandTimeout)
	defer cancel()

	c.Cleanup(ctx)
	return nil
}

func (c *Controller) cleanupLocked(ctx context.Context) {
	mods, err := c.listModules(ctx)
	if err != nil {
		c.log.Warn("Cleanup cannot list modules", "err", err)
	} else {
		for _, m := range mods {
			if strings.Contains(m.Args, c.cfg.MicName) || strings.Contains(m.Args, c.cfg.SinkName) {
				c.unload(ctx, m)
			}
		}
	}

	if err := c.removeAllLoopbacks(ctx); err != nil {
		c.log.Warn("Cleanup cannot remove loopbacks", "err", err)
	}
}

func (c *Controller) removeAllLoopbacks(ctx context.Context) error {
	mods, err := c.listModules(ctx)
	if err != nil {
		return err
	}
	for _, m := range mods {
		if m.Name == "module-loopback" {
			c.unload(ctx, m)
		}
	}
	return nil
}

func (c *Controller) createLoopback(ctx context.Context, source string) error {
	res, err := c.pactl(ctx,
		"load-module", "module-loopback",
		"source="+source,
		"sink="+c.cfg.SinkName,
		"latency_msec="+strconv.FormatInt(c.cfg.LoopbackLatency.Milliseconds(), 10),
	)
	if err != nil {
		return fmt.Errorf("create loopback: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: create loopback from %s: %s", ErrRouting, source, res.stderr())
	}
	return nil
}

func (c *Controller) unload(ctx context.Context, m module) {
	res, err := c.pactl(ctx, "unload-module", m.ID)
	if err != nil || !res.OK() {
		c.log.Debug("Failed to unload module", "id", m.ID, "module", m.Name, "err", err, "stderr", res.stderr())
		return
	}
	c.log.Debug("Unloaded module", "id", m.ID, "module", m.Name)
}

func (c *Controller) listModules(ctx context.Context) ([]module, error) {
	out, err := c.query(ctx, "list", "modules", "short")
	if err != nil {
		return nil, err
	}
	return parseModules(out), nil
}

func (c *Controller) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := c.query(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	return parseStreams(out), nil
}

func (c *Controller) isSelf(s streamInfo) bool {
	if c.pid > 0 && s.ProcessID == c.pid {
		return true
	}
	return (s.AppName != "" && c.app.MatchString(s.AppName)) ||
		(s.Binary != "" && c.app.MatchString(s.Binary))
}

// pactl runs one invocation. Only a failure to run is an error.
func (c *Controller) pactl(ctx context.Context, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
	defer cancel()

	res, err := c.run.Run(ctx, c.cfg.Pactl, args...)
	if err != nil {
		return res, &ToolError{Args: args, Stderr: res.stderr(), Err: err}
	}
	return res, nil
}

// query also treats a non-zero exit status as a failure.
func (c *Controller) query(ctx context.Context, args ...string) (string, error) {
	res, err := c.pactl(ctx, args...)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", &ToolError{Args: args, Stderr: res.stderr(), Err: exitError(res)}
	}
	return string(res.Stdout), nil
}
