package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu      sync.Mutex
	writes  []domain.LessonProgressUpdate
	records []*domain.LessonProgress
	err     error
	delay   time.Duration

	inflight    int32
	maxInflight int32
}

var _ domain.ProgressClient = &fakeClient{}

func (fc *fakeClient) WriteLessonProgress(ctx context.Context, update *domain.LessonProgressUpdate) (*domain.LessonProgress, error) {
	n := atomic.AddInt32(&fc.inflight, 1)
	defer atomic.AddInt32(&fc.inflight, -1)
	for {
		max := atomic.LoadInt32(&fc.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&fc.maxInflight, max, n) {
			break
		}
	}
	if fc.delay > 0 {
		time.Sleep(fc.delay)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.writes = append(fc.writes, *update)
	if fc.err != nil {
		return nil, fc.err
	}
	return &domain.LessonProgress{
		LessonID:  update.LessonID,
		UserID:    update.UserID,
		Progress:  update.Progress,
		Completed: update.Completed,
	}, nil
}

func (fc *fakeClient) ReadModuleProgress(ctx context.Context, moduleID, userID string) int {
	return 0
}

func (fc *fakeClient) ReadCourseProgress(ctx context.Context, courseID, userID string) int {
	return 0
}

func (fc *fakeClient) ReadAllLessonProgress(ctx context.Context, userID string) []*domain.LessonProgress {
	return fc.records
}

func (fc *fakeClient) Writes() []domain.LessonProgressUpdate {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]domain.LessonProgressUpdate(nil), fc.writes...)
}

type fakePlayer struct {
	mu       sync.Mutex
	position float64
	duration float64
	step     float64 // advance per read, simulates playback
}

func (fp *fakePlayer) CurrentTime() float64 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	pos := fp.position
	fp.position += fp.step
	return pos
}

func (fp *fakePlayer) Duration() float64 {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.duration
}

func (fp *fakePlayer) Seek(position float64) {
	fp.mu.Lock()
	fp.position = position
	fp.mu.Unlock()
}

var testTarget = Target{LessonID: "l1", ModuleID: "m1", CourseID: "c1", UserID: "u1"}

func newTestWatcher(client domain.ProgressClient, player Player, pub notify.Publisher, opts *Options) *Watcher {
	return NewWatcher(context.Background(), testTarget, player, client, pub, opts, zap.NewNop())
}

func TestWatcher_ThresholdCompletesDespiteSmallDelta(t *testing.T) {
	client := new(fakeClient)
	player := &fakePlayer{duration: 600}
	w := newTestWatcher(client, player, nil, nil)

	require.True(t, w.Report(context.Background(), 89, false))
	player.Seek(540)
	require.True(t, w.Sample(context.Background()))

	writes := client.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, 90, writes[1].Progress)
	assert.True(t, writes[1].Completed)
	assert.Equal(t, State{Progress: 90, Completed: true, LastSent: 90}, w.State())
}

func TestWatcher_SubDeltaReportsAreSkipped(t *testing.T) {
	client := new(fakeClient)
	player := &fakePlayer{duration: 100}
	w := newTestWatcher(client, player, nil, nil)

	player.Seek(40)
	assert.True(t, w.Sample(context.Background()))
	player.Seek(41)
	assert.False(t, w.Sample(context.Background()))

	writes := client.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, 40, writes[0].Progress)
	assert.False(t, writes[0].Completed)
}

func TestWatcher_RepeatedSmallReportsWriteOnce(t *testing.T) {
	client := new(fakeClient)
	w := newTestWatcher(client, &fakePlayer{}, nil, &Options{Debounce: 5})

	w.Report(context.Background(), 20, false)
	for p := 21; p < 25; p++ {
		w.Report(context.Background(), p, false)
	}
	assert.Len(t, client.Writes(), 1)
}

func TestWatcher_PartialOptionsKeepDefaults(t *testing.T) {
	client := new(fakeClient)
	w := newTestWatcher(client, &fakePlayer{duration: 100, position: 40}, nil, &Options{Interval: 10 * time.Millisecond})
	assert.Equal(t, Options{Interval: 10 * time.Millisecond, Threshold: 90, Debounce: 2}, w.opts)

	for i := 0; i < 5; i++ {
		w.Sample(context.Background())
	}
	assert.Len(t, client.Writes(), 1, "identical samples must not be written again")
}

func TestWatcher_RepeatedCompletionSkipped(t *testing.T) {
	client := new(fakeClient)
	w := newTestWatcher(client, &fakePlayer{}, nil, nil)

	assert.True(t, w.Report(context.Background(), 95, true))
	assert.False(t, w.Report(context.Background(), 95, true))
	assert.True(t, w.Report(context.Background(), 96, true))
	assert.Len(t, client.Writes(), 2)
}

func TestWatcher_EndedForcesCompletion(t *testing.T) {
	client := new(fakeClient)
	w := newTestWatcher(client, &fakePlayer{duration: 60}, nil, nil)

	assert.True(t, w.Report(context.Background(), 100, true))
	assert.True(t, w.Ended(context.Background()))

	writes := client.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, domain.LessonProgressUpdate{
		LessonID: "l1", ModuleID: "m1", CourseID: "c1", UserID: "u1", Progress: 100, Completed: true,
	}, writes[1])
}

func TestWatcher_MarkCompleted(t *testing.T) {
	client := new(fakeClient)
	w := newTestWatcher(client, &fakePlayer{}, nil, nil)

	assert.True(t, w.MarkCompleted(context.Background()))
	assert.Equal(t, State{Progress: 100, Completed: true, LastSent: 100}, w.State())
}

func TestWatcher_MissingIdentifiers(t *testing.T) {
	client := new(fakeClient)
	for _, target := range []Target{
		{ModuleID: "m1", CourseID: "c1", UserID: "u1"},
		{LessonID: "l1", ModuleID: "m1", CourseID: "c1"},
	} {
		w := NewWatcher(context.Background(), target, &fakePlayer{duration: 10}, client, nil, nil, zap.NewNop())
		assert.False(t, w.Report(context.Background(), 50, false))
		assert.False(t, w.Ended(context.Background()))
		assert.False(t, w.Load(context.Background()))
	}
	assert.Empty(t, client.Writes())
}

func TestWatcher_FailedWriteIsSwallowed(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	hub := notify.NewHub(8)
	sub := hub.Subscribe(nil)
	defer sub.Close()
	w := newTestWatcher(client, &fakePlayer{}, hub, nil)

	assert.False(t, w.Report(context.Background(), 30, false))
	// last sent is updated optimistically
	assert.Equal(t, 30, w.State().LastSent)
	assert.Empty(t, drainEvents(sub))
}

func TestWatcher_NotifiesOnSuccess(t *testing.T) {
	client := new(fakeClient)
	hub := notify.NewHub(8)
	sub := hub.Subscribe(notify.ForUser("u1"))
	defer sub.Close()
	w := newTestWatcher(client, &fakePlayer{}, hub, nil)

	require.True(t, w.Report(context.Background(), 30, false))
	assert.ElementsMatch(t, []notify.Event{
		{Kind: notify.LessonProgressChanged, ID: "l1", UserID: "u1"},
		{Kind: notify.ModuleProgressChanged, ID: "m1", UserID: "u1"},
		{Kind: notify.CourseProgressChanged, ID: "c1", UserID: "u1"},
	}, drainEvents(sub))
}

func TestWatcher_Load(t *testing.T) {
	client := &fakeClient{records: []*domain.LessonProgress{
		{LessonID: "l0", Progress: 10},
		{LessonID: "l1", Progress: 55, Completed: false},
	}}
	w := newTestWatcher(client, &fakePlayer{duration: 100}, nil, nil)

	assert.True(t, w.Load(context.Background()))
	assert.Equal(t, State{Progress: 55, LastSent: 55}, w.State())

	// within the debounce delta of the loaded value
	assert.False(t, w.Report(context.Background(), 56, false))
}

func TestWatcher_PlayingRequiresDuration(t *testing.T) {
	player := &fakePlayer{}
	w := newTestWatcher(new(fakeClient), player, nil, nil)
	defer w.Close()

	assert.False(t, w.Playing())
	player.mu.Lock()
	player.duration = 100
	player.mu.Unlock()
	assert.True(t, w.Playing())
	assert.False(t, w.Playing(), "a second loop must not start")
	assert.True(t, w.State().Playing)
}

func TestWatcher_NoSampleAfterPaused(t *testing.T) {
	client := new(fakeClient)
	player := &fakePlayer{duration: 10000, position: 100, step: 300}
	w := newTestWatcher(client, player, nil, &Options{Interval: 2 * time.Millisecond})
	defer w.Close()

	require.True(t, w.Playing())
	require.Eventually(t, func() bool { return len(client.Writes()) >= 3 }, time.Second, time.Millisecond)
	w.Paused()
	n := len(client.Writes())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, client.Writes(), n)
	assert.False(t, w.State().Playing)
}

func TestWatcher_NoSampleAfterClose(t *testing.T) {
	client := new(fakeClient)
	player := &fakePlayer{duration: 10000, position: 100, step: 300}
	w := newTestWatcher(client, player, nil, &Options{Interval: 2 * time.Millisecond})

	require.True(t, w.Playing())
	require.Eventually(t, func() bool { return len(client.Writes()) >= 1 }, time.Second, time.Millisecond)
	w.Close()
	w.Close()
	n := len(client.Writes())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, client.Writes(), n)
	assert.False(t, w.Playing(), "closed watcher must not restart")
}

func TestWatcher_WritesNeverOverlap(t *testing.T) {
	client := &fakeClient{delay: 5 * time.Millisecond}
	player := &fakePlayer{duration: 10000, position: 100, step: 300}
	w := newTestWatcher(client, player, nil, &Options{Interval: time.Millisecond})

	require.True(t, w.Playing())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			w.Report(context.Background(), p, false)
		}(i * 10)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.MarkCompleted(context.Background())
	}()
	wg.Wait()
	w.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&client.maxInflight))
	assert.NotEmpty(t, client.Writes())
}

func drainEvents(sub *notify.Subscription) []notify.Event {
	var events []notify.Event
	for {
		select {
		case e := <-sub.C:
			events = append(events, e)
		default:
			return events
		}
	}
}
