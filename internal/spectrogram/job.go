// Package spectrogram drives spectrogram jobs on the upstream gateway: submit,
// poll the post-processing status on a ticker, then download the image.
package spectrogram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
)

var logf = monitoring.Tagged("Spectrogram")

// ErrJobFailed is reported when the gateway marks the job failed.
var ErrJobFailed = errors.New("spectrogram job failed")

// ErrJobNotFound is returned for captures with no submitted job.
var ErrJobNotFound = errors.New("no spectrogram job for capture")

// ErrJobNotComplete is returned when asking for the image too early.
var ErrJobNotComplete = errors.New("spectrogram job is not complete")

// DefaultPollInterval is used when the runner is given a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// State is a job's position in Submitted → Running → Completed | Failed.
type State string

const (
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Gateway is the part of the gateway client the runner needs.
type Gateway interface {
	SubmitSpectrogram(ctx context.Context, captureID string, req gateway.SpectrogramRequest) error
	SpectrogramStatus(ctx context.Context, captureID string) (string, error)
	DownloadSpectrogram(ctx context.Context, captureID string) ([]byte, error)
}

// Snapshot is a read-only view of a job.
type Snapshot struct {
	CaptureID   string    `json:"capture_id"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	Polls       int       `json:"polls"`
	ImageBytes  int       `json:"image_bytes"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type job struct {
	captureID   string
	state       State
	err         error
	polls       int
	image       []byte
	submittedAt time.Time
	updatedAt   time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

func (j *job) snapshot() Snapshot {
	s := Snapshot{
		CaptureID:   j.captureID,
		State:       j.state,
		Polls:       j.polls,
		ImageBytes:  len(j.image),
		SubmittedAt: j.submittedAt,
		UpdatedAt:   j.updatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Runner tracks one job per capture.
type Runner struct {
	gw       Gateway
	clock    timeutil.Clock
	interval time.Duration

	base context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*job
}

// NewRunner creates a runner polling every interval.
func NewRunner(gw Gateway, clock timeutil.Clock, interval time.Duration) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		gw:       gw,
		clock:    clock,
		interval: interval,
		base:     base,
		stop:     stop,
		jobs:     make(map[string]*job),
	}
}

// Submit starts a job for captureID. While an earlier job for the capture is
// still in flight its snapshot is returned and nothing is resubmitted. ctx
// bounds only the submit request; polling runs until the job finishes, is
// cancelled, or the runner is closed.
func (r *Runner) Submit(ctx context.Context, captureID string, req gateway.SpectrogramRequest) (Snapshot, error) {
	r.mu.Lock()
	if j, ok := r.jobs[captureID]; ok && !j.state.Terminal() {
		s := j.snapshot()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	if err := r.gw.SubmitSpectrogram(ctx, captureID, req); err != nil {
		return Snapshot{}, fmt.Errorf("submitting spectrogram: %w", err)
	}

	pollCtx, cancel := context.WithCancel(r.base)
	now := r.clock.Now()
	j := &job{
		captureID:   captureID,
		state:       StateSubmitted,
		submittedAt: now,
		updatedAt:   now,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.jobs[captureID]; ok && prev.cancel != nil {
		prev.cancel()
	}
	r.jobs[captureID] = j
	s := j.snapshot()
	r.mu.Unlock()

	go r.poll(pollCtx, j)
	return s, nil
}

// Status returns the job snapshot for captureID.
func (r *Runner) Status(captureID string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[captureID]
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Image returns the downloaded spectrogram of a completed job.
func (r *Runner) Image(captureID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[captureID]
	if !ok {
		return nil, ErrJobNotFound
	}
	switch j.state {
	case StateCompleted:
		return j.image, nil
	case StateFailed:
		if errors.Is(j.err, ErrJobFailed) {
			return nil, j.err
		}
		return nil, fmt.Errorf("%w: %w", ErrJobFailed, j.err)
	default:
		return nil, ErrJobNotComplete
	}
}

// Wait blocks until the job reaches a terminal state or ctx ends.
func (r *Runner) Wait(ctx context.Context, captureID string) (Snapshot, error) {
	r.mu.Lock()
	j, ok := r.jobs[captureID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	select {
	case <-j.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := j.snapshot()
	if j.state == StateFailed {
		return s, j.err
	}
	return s, nil
}

// Cancel stops polling the capture's job, marking it failed.
func (r *Runner) Cancel(captureID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[captureID]; ok && j.cancel != nil {
		j.cancel()
	}
}

// Close cancels every in-flight job.
func (r *Runner) Close() {
	r.stop()
}

func (r *Runner) poll(ctx context.Context, j *job) {
	defer close(j.done)
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finish(j, nil, fmt.Errorf("polling stopped: %w", ctx.Err()))
			return
		case <-ticker.C():
		}

		status, err := r.gw.SpectrogramStatus(ctx, j.captureID)
		if err != nil {
			r.finish(j, nil, fmt.Errorf("checking status: %w", err))
			return
		}

		switch status {
		case gateway.StatusCompleted:
			image, err := r.gw.DownloadSpectrogram(ctx, j.captureID)
			if err != nil {
				r.finish(j, nil, fmt.Errorf("downloading spectrogram: %w", err))
				return
			}
			r.finish(j, image, nil)
			return
		case gateway.StatusFailed:
			r.finish(j, nil, ErrJobFailed)
			return
		default:
			r.mu.Lock()
			j.state = StateRunning
			j.polls++
			j.updatedAt = r.clock.Now()
			r.mu.Unlock()
		}
	}
}

func (r *Runner) finish(j *job, image []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j.polls++
	j.updatedAt = r.clock.Now()
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	if err != nil {
		j.state = StateFailed
		j.err = err
		logf("capture %s: job failed: %v", j.captureID, err)
		return
	}
	j.state = StateCompleted
	j.image = image
	logf("capture %s: spectrogram ready (%d bytes)", j.captureID, len(image))
}
