package waterfall

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
)

var playbackLogf = monitoring.Tagged("Playback")

// ErrInvalidRate is returned for non-positive or non-finite playback rates.
var ErrInvalidRate = errors.New("playback rate must be a positive number")

// PlaybackState is the controller's state: Idle or Playing.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	if s == PlaybackPlaying {
		return "playing"
	}
	return "idle"
}

// PlaybackController advances the viewport selection on a fixed-rate ticker
// until the last slice is reached or playback is paused.
//
// The controller shares mu with its owner. Play, Pause, SetRate and Close
// must be called with mu held; the ticker goroutine acquires mu around each
// Tick, so ticks and input handlers never interleave.
type PlaybackController struct {
	clock     timeutil.Clock
	mu        sync.Locker
	viewport  *Viewport
	onAdvance func()

	state  PlaybackState
	rate   float64
	ticker timeutil.Ticker
	done   chan struct{}
}

// NewPlaybackController creates an idle controller. onAdvance, if non-nil, is
// called (with mu held) after every tick that moved the selection.
func NewPlaybackController(clock timeutil.Clock, mu sync.Locker, vp *Viewport, rate float64, onAdvance func()) (*PlaybackController, error) {
	if err := ValidateRate(rate); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PlaybackController{
		clock:     clock,
		mu:        mu,
		viewport:  vp,
		onAdvance: onAdvance,
		rate:      rate,
	}, nil
}

// ValidateRate rejects non-positive and non-finite rates.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return nil
}

// State returns the current state.
func (pc *PlaybackController) State() PlaybackState { return pc.state }

// Playing reports whether the controller is in the Playing state.
func (pc *PlaybackController) Playing() bool { return pc.state == PlaybackPlaying }

// Rate returns the playback rate in slices per second.
func (pc *PlaybackController) Rate() float64 { return pc.rate }

// Period is the tick interval: one second divided by the rate.
func (pc *PlaybackController) Period() time.Duration {
	return time.Duration(float64(time.Second) / pc.rate)
}

// Play starts the ticker. It is a no-op while already playing.
func (pc *PlaybackController) Play() {
	if pc.state == PlaybackPlaying {
		return
	}
	pc.state = PlaybackPlaying
	pc.ticker = pc.clock.NewTicker(pc.Period())
	pc.done = make(chan struct{})
	go pc.run(pc.ticker, pc.done)
	playbackLogf("playing from index %d at %.2f slices/s", pc.viewport.Selected(), pc.rate)
}

// Pause stops the ticker and returns to Idle. Pausing while idle is a no-op.
func (pc *PlaybackController) Pause() {
	if pc.state != PlaybackPlaying {
		return
	}
	pc.stopLocked()
}

// SetRate changes the rate. While playing, the ticker restarts with the new
// period; the selected index is untouched.
func (pc *PlaybackController) SetRate(rate float64) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	pc.rate = rate
	if pc.state == PlaybackPlaying {
		pc.ticker.Reset(pc.Period())
	}
	return nil
}

// Close stops playback for good. The owner calls it when tearing down.
func (pc *PlaybackController) Close() {
	pc.Pause()
}

// Tick performs one playback step under mu. It is what the ticker goroutine
// runs for every tick and may be called directly to step deterministically.
func (pc *PlaybackController) Tick() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.tickLocked()
}

func (pc *PlaybackController) tickLocked() {
	if pc.state != PlaybackPlaying {
		return
	}
	if pc.viewport.Selected() >= pc.viewport.Total()-1 {
		playbackLogf("reached last slice %d, stopping", pc.viewport.Selected())
		pc.stopLocked()
		return
	}
	pc.viewport.SetSelectedIndex(pc.viewport.Selected() + 1)
	if pc.onAdvance != nil {
		pc.onAdvance()
	}
}

func (pc *PlaybackController) stopLocked() {
	pc.state = PlaybackIdle
	if pc.ticker != nil {
		pc.ticker.Stop()
		pc.ticker = nil
	}
	if pc.done != nil {
		close(pc.done)
		pc.done = nil
	}
}

func (pc *PlaybackController) run(ticker timeutil.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			pc.mu.Lock()
			select {
			case <-done:
				// paused while we waited for the lock
				pc.mu.Unlock()
				return
			default:
			}
			pc.tickLocked()
			pc.mu.Unlock()
		}
	}
}
