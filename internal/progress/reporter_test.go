package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingReporter struct {
	starts  []int
	updates []int
	done    int
}

func (r *recordingReporter) Start(total int, _ string) { r.starts = append(r.starts, total) }
func (r *recordingReporter) Update(current int)        { r.updates = append(r.updates, current) }
func (r *recordingReporter) Finish()                   { r.done++ }

func TestTrackerStartsOnceAndNeverGoesBackwards(t *testing.T) {
	rec := &recordingReporter{}
	tr := NewTracker(rec, "Embedding")
	fn := tr.Func()

	fn(8, 20)
	fn(16, 20)
	fn(12, 20) // late batch
	fn(20, 20)
	tr.Finish()

	assert.Equal(t, []int{20}, rec.starts)
	assert.Equal(t, []int{8, 16, 20}, rec.updates)
	assert.Equal(t, 1, rec.done)
}

func TestTrackerFinishWithoutProgress(t *testing.T) {
	rec := &recordingReporter{}
	NewTracker(rec, "Embedding").Finish()
	assert.Zero(t, rec.done)
	assert.Empty(t, rec.starts)
}

func TestTrackerConcurrentCallbacks(t *testing.T) {
	rec := &recordingReporter{}
	fn := NewTracker(rec, "Embedding").Func()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fn(n, 50)
		}(i)
	}
	wg.Wait()

	assert.Len(t, rec.starts, 1)
	assert.Equal(t, 50, rec.updates[len(rec.updates)-1])
}

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf}
	r.Start(3, "Embedding passages")
	r.Update(2)
	r.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"Embedding passages: 3 passages",
		"[2/3] Embedding passages",
		"Embedding passages complete",
	}, lines)
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	_, ok := NewReporter().(*CIReporter)
	assert.True(t, ok)
}
