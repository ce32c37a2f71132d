package spectrogram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// fakeGateway answers status polls from a queue; once drained it keeps
// returning the last entry.
type fakeGateway struct {
	mu        sync.Mutex
	submitErr error
	statuses  []string
	statusErr error
	image     []byte
	submits   int
	downloads int
}

func (f *fakeGateway) SubmitSpectrogram(ctx context.Context, captureID string, req gateway.SpectrogramRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return f.submitErr
}

func (f *fakeGateway) SpectrogramStatus(ctx context.Context, captureID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeGateway) DownloadSpectrogram(ctx context.Context, captureID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	return f.image, nil
}

func newTestRunner(gw *fakeGateway) (*Runner, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewRunner(gw, clock, time.Second), clock
}

// tick advances the clock one interval once the poll loop's ticker exists.
func tick(t *testing.T, clock *timeutil.MockClock) {
	t.Helper()
	require.Eventually(t, func() bool { return len(clock.Tickers()) > 0 }, time.Second, time.Millisecond)
	clock.Advance(time.Second)
}

func waitState(t *testing.T, r *Runner, captureID string, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := r.Status(captureID)
		snap = s
		return err == nil && s.State == want
	}, time.Second, time.Millisecond)
	return snap
}

func TestRunnerCompletes(t *testing.T) {
	gw := &fakeGateway{statuses: []string{"running", "completed"}, image: []byte("png")}
	r, clock := newTestRunner(gw)
	defer r.Close()

	snap, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)

	_, err = r.Image("cap")
	assert.ErrorIs(t, err, ErrJobNotComplete)

	tick(t, clock)
	waitState(t, r, "cap", StateRunning)

	clock.Advance(time.Second)
	snap = waitState(t, r, "cap", StateCompleted)
	assert.Equal(t, 2, snap.Polls)
	assert.Equal(t, 3, snap.ImageBytes)

	img, err := r.Image("cap")
	require.NoError(t, err)
	assert.Equal(t, "png", string(img))

	final, err := r.Wait(context.Background(), "cap")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, final.State)
}

func TestRunnerFailedJob(t *testing.T) {
	gw := &fakeGateway{statuses: []string{"failed"}}
	r, clock := newTestRunner(gw)
	defer r.Close()

	_, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	tick(t, clock)

	_, err = r.Wait(context.Background(), "cap")
	assert.ErrorIs(t, err, ErrJobFailed)
	_, err = r.Image("cap")
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Equal(t, 0, gw.downloads)
}

func TestRunnerStatusErrorIsTerminal(t *testing.T) {
	gw := &fakeGateway{statusErr: &gateway.APIError{StatusCode: 500}}
	r, clock := newTestRunner(gw)
	defer r.Close()

	_, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	tick(t, clock)

	snap, err := r.Wait(context.Background(), "cap")
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, StateFailed, snap.State)
}

func TestRunnerDoesNotResubmitInFlightJob(t *testing.T) {
	gw := &fakeGateway{statuses: []string{"running"}}
	r, _ := newTestRunner(gw)
	defer r.Close()

	_, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	_, err = r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.submits)
}

func TestRunnerCancel(t *testing.T) {
	gw := &fakeGateway{statuses: []string{"running"}}
	r, _ := newTestRunner(gw)
	defer r.Close()

	_, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	require.NoError(t, err)
	r.Cancel("cap")

	snap, err := r.Wait(context.Background(), "cap")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, snap.State)
}

func TestRunnerSubmitError(t *testing.T) {
	gw := &fakeGateway{submitErr: &gateway.APIError{StatusCode: 403}}
	r, _ := newTestRunner(gw)
	defer r.Close()

	_, err := r.Submit(context.Background(), "cap", gateway.SpectrogramRequest{})
	assert.Error(t, err)
	_, err = r.Status("cap")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateSubmitted.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}
