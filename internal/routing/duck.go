package routing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

type fadeTarget struct {
	id   int
	from int
	to   int
}

type DuckConfig struct {
	// Factor scales other streams' volume while clips play. >= 1 disables.
	Factor    float64
	MinVolume int
	FadeOut   time.Duration
	FadeIn    time.Duration
}

func DefaultDuckConfig() DuckConfig {
	return DuckConfig{
		Factor:    0.3,
		MinVolume: 10,
		FadeOut:   150 * time.Millisecond,
		FadeIn:    400 * time.Millisecond,
	}
}

// Ducker fades streams of OTHER applications while this one plays clips.
// Streams the controller recognises as its own are never touched.
type Ducker struct {
	c   *Controller
	cfg DuckConfig

	mu          sync.Mutex
	active      bool
	originalVol map[int]int // id -> original volume %

	trackMu sync.Mutex
	want    chan bool
}

func (c *Controller) NewDucker(cfg DuckConfig) *Ducker {
	if cfg.MinVolume < 0 {
		cfg.MinVolume = 0
	}
	if cfg.MinVolume > 150 {
		cfg.MinVolume = 150
	}

	return &Ducker{
		c:           c,
		cfg:         cfg,
		originalVol: make(map[int]int),
		want:        make(chan bool, 1),
	}
}

func (d *Ducker) Enabled() bool {
	return d.cfg.Factor < 1
}

// Track records the engine's active voice count. Run applies the latest
// state; intermediate ones are dropped.
func (d *Ducker) Track(active int) {
	if !d.Enabled() {
		return
	}

	d.trackMu.Lock()
	defer d.trackMu.Unlock()

	select {
	case <-d.want:
	default:
	}
	d.want <- active > 0
}

// Run applies tracked state until ctx ends, then restores other streams.
func (d *Ducker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			rctx, cancel := context.WithTimeout(context.Background(), d.c.cfg.CommandTimeout)
			if err := d.UnduckOthers(rctx, 0); err != nil {
				d.c.log.Warn("Failed to restore ducked streams", "err", err)
			}
			cancel()
			return

		case duck := <-d.want:
			var err error
			if duck {
				err = d.DuckOthers(ctx, d.cfg.Factor, d.cfg.FadeOut)
			} else {
				err = d.UnduckOthers(ctx, d.cfg.FadeIn)
			}
			if err != nil {
				d.c.log.Warn("Ducking failed", "duck", duck, "err", err)
			}
		}
	}
}

// DuckOthers fades every foreign stream to current*factor, but not below
// MinVolume.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.c.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("listStreams: %w", err)
	}

	// loopbacks feeding the mix carry the user's voice
	mix, err := d.c.mixSinkIndex(ctx)
	if err != nil {
		return fmt.Errorf("mixSinkIndex: %w", err)
	}

	d.originalVol = make(map[int]int)

	var targets []fadeTarget

	for _, s := range streams {
		if d.c.isSelf(s) || s.Volume == 0 || (mix >= 0 && s.Sink == mix) {
			continue
		}

		from := s.Volume

		targetFloat := float64(from) * factor
		if targetFloat < float64(d.cfg.MinVolume) {
			targetFloat = float64(d.cfg.MinVolume)
		}
		if targetFloat > 150.0 {
			targetFloat = 150.0
		}

		to := int(math.Round(targetFloat))

		d.originalVol[s.ID] = from

		targets = append(targets, fadeTarget{
			id:   s.ID,
			from: from,
			to:   to,
		})
	}

	if len(targets) > 0 {
		if err := d.fadeInputs(ctx, targets, duration); err != nil {
			return err
		}
	}

	d.active = true

	return nil
}

// UnduckOthers fades foreign streams back to the volumes they had before
// DuckOthers.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.c.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("listStreams: %w", err)
	}

	var targets []fadeTarget

	for _, s := range streams {
		if d.c.isSelf(s) {
			continue
		}
		orig, ok := d.originalVol[s.ID]
		if !ok {
			// stream appeared after ducking
			continue
		}
		targets = append(targets, fadeTarget{
			id:   s.ID,
			from: s.Volume,
			to:   orig,
		})
	}

	if len(targets) > 0 {
		if err := d.fadeInputs(ctx, targets, duration); err != nil {
			return err
		}
	}

	d.originalVol = make(map[int]int)
	d.active = false

	return nil
}

func (d *Ducker) Ducked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// fadeInputs steps a set of sink inputs towards their targets.
func (d *Ducker) fadeInputs(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if duration <= 0 {
		for _, t := range targets {
			if err := d.setSinkInputVolume(ctx, t.id, t.to); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}
		return nil
	}

	const minStepDuration = 10 * time.Millisecond

	steps := int(duration / minStepDuration)
	if steps < 1 {
		steps = 1
	}

	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		tFrac := float64(i) / float64(steps)

		for _, s := range targets {
			delta := s.to - s.from
			v := int(math.Round(float64(s.from) + float64(delta)*tFrac))

			if err := d.setSinkInputVolume(ctx, s.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", s.id, err)
			}
		}

		if i < steps {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepDuration):
			}
		}
	}

	return nil
}

func (d *Ducker) setSinkInputVolume(ctx context.Context, id int, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}

	_, err := d.c.query(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}
