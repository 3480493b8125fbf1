package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vision-inspector/internal/domain/entity"
)

type fakeCamera struct {
	mu    sync.Mutex
	frame *entity.Frame
	err   error
	delay time.Duration

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *fakeCamera) Capture(ctx context.Context, _ entity.CaptureHints) (*entity.Frame, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		m := c.maxActive.Load()
		if n <= m || c.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	c.calls.Add(1)

	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", entity.ErrCapture, ctx.Err())
		case <-time.After(c.delay):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.frame.Clone(), nil
}

func (c *fakeCamera) setFrame(f *entity.Frame) {
	c.mu.Lock()
	c.frame = f
	c.mu.Unlock()
}

type fakeLoader struct {
	frames map[string]*entity.Frame
}

func (l *fakeLoader) LoadReference(_ context.Context, handle string) (*entity.Frame, error) {
	f, ok := l.frames[handle]
	if !ok {
		return nil, fmt.Errorf("reference %s: %w", handle, entity.ErrNotFound)
	}
	return f, nil
}

type writeRecord struct {
	channel int
	active  bool
	at      time.Time
}

type recordingDriver struct {
	mu     sync.Mutex
	writes []writeRecord
}

func (d *recordingDriver) Write(channel int, active bool) error {
	d.mu.Lock()
	d.writes = append(d.writes, writeRecord{channel: channel, active: active, at: time.Now()})
	d.mu.Unlock()
	return nil
}

func (d *recordingDriver) count(channel int, active bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, w := range d.writes {
		if w.channel == channel && w.active == active {
			n++
		}
	}
	return n
}

func (d *recordingDriver) level(channel int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.writes) - 1; i >= 0; i-- {
		if d.writes[i].channel == channel {
			return d.writes[i].active
		}
	}
	return false
}

func (d *recordingDriver) history(channel int) []writeRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []writeRecord
	for _, w := range d.writes {
		if w.channel == channel {
			out = append(out, w)
		}
	}
	return out
}

type memorySink struct {
	mu      sync.Mutex
	results []*entity.InspectionResult
	stats   []entity.Statistics
}

func (s *memorySink) SaveResult(_ context.Context, r *entity.InspectionResult) error {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) SaveStatistics(_ context.Context, stats entity.Statistics) error {
	s.mu.Lock()
	s.stats = append(s.stats, stats)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) savedResults() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []entity.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, a entity.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) rules() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.alerts))
	for i, a := range n.alerts {
		out[i] = a.Rule
	}
	return out
}

// halfFrame 10x10: верхняя половина чёрная, нижняя белая
func halfFrame() *entity.Frame {
	f := entity.NewFrame(10, 10)
	f.Fill(entity.ROI{X: 0, Y: 5, W: 10, H: 5}, 255, 255, 255)
	return f
}

func areaProgram() *entity.Program {
	return &entity.Program{
		ID:        "prog-1",
		Name:      "area check",
		Trigger:   entity.Trigger{Mode: entity.TriggerInternal, IntervalMS: 10000},
		Reference: "ref",
		Tools: []entity.ToolConfig{
			{ID: "area", Kind: entity.ToolArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 40},
		},
		Outputs: entity.OutputMap{4: entity.OutputOnOK, 5: entity.OutputOnNG, 6: entity.OutputAlwaysOn},
	}
}

// sequenceCamera отдаёт кадры по кругу, как воспроизведение записи
type sequenceCamera struct {
	mu     sync.Mutex
	frames []*entity.Frame
	next   int
}

func (c *sequenceCamera) Capture(_ context.Context, _ entity.CaptureHints) (*entity.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.frames[c.next%len(c.frames)].Clone()
	c.next++
	f.Seq = uint64(c.next)
	return f, nil
}

func (c *sequenceCamera) captured() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
