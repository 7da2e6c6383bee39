package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikunjBaldaniya/AnyviDow/internal/domain"
)

func sample(p float64) domain.ProgressSnapshot {
	return domain.ProgressSnapshot{Status: domain.StatusDownloading, Progress: p}
}

func progresses(batch []domain.ProgressSnapshot) []float64 {
	out := make([]float64, len(batch))
	for i, s := range batch {
		out[i] = s.Progress
	}
	return out
}

func TestChannel_DropsOldestSampleWhenFull(t *testing.T) {
	ch := NewChannel(3)
	for i := 1; i <= 5; i++ {
		assert.True(t, ch.Publish(sample(float64(i))))
	}

	batch, complete := ch.Drain()
	assert.False(t, complete)
	assert.Equal(t, []float64{3, 4, 5}, progresses(batch))
	assert.Equal(t, uint64(2), ch.Dropped())
}

func TestChannel_MilestonesSurviveOverflow(t *testing.T) {
	ch := NewChannel(2)
	ch.Milestone(domain.ProgressSnapshot{Status: domain.StatusStarting})
	for i := 1; i <= 4; i++ {
		ch.Publish(sample(float64(i)))
	}
	ch.Milestone(domain.ProgressSnapshot{Status: domain.StatusMerging, Progress: 90})

	batch, _ := ch.Drain()
	require.Len(t, batch, 4)
	assert.Equal(t, domain.StatusStarting, batch[0].Status)
	assert.Equal(t, []float64{3, 4}, progresses(batch[1:3]))
	assert.Equal(t, domain.StatusMerging, batch[3].Status)
}

func TestChannel_FinishFlushesTerminalEvents(t *testing.T) {
	ch := NewChannel(4)
	ch.Publish(sample(10))
	ch.Finish(
		domain.ProgressSnapshot{Status: domain.StatusCompleted, Progress: 100},
		domain.ProgressSnapshot{Status: domain.StatusReady, Filename: "clip.mp4"},
	)

	select {
	case <-ch.Done():
	default:
		t.Fatal("done channel not closed")
	}

	assert.False(t, ch.Publish(sample(50)))

	batch, complete := ch.Drain()
	assert.True(t, complete)
	require.Len(t, batch, 3)
	assert.Equal(t, domain.StatusReady, batch[2].Status)

	batch, complete = ch.Drain()
	assert.True(t, complete)
	assert.Empty(t, batch)

	ch.Finish(domain.ProgressSnapshot{Status: domain.StatusError})
	batch, _ = ch.Drain()
	assert.Empty(t, batch)
}

func TestChannel_ConcurrentProducerConsumer(t *testing.T) {
	ch := NewChannel(8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			ch.Publish(sample(float64(i)))
		}
		ch.Finish(domain.ProgressSnapshot{Status: domain.StatusReady})
	}()

	var last domain.ProgressSnapshot
	for {
		batch, complete := ch.Drain()
		if len(batch) > 0 {
			last = batch[len(batch)-1]
		}
		if complete {
			break
		}
	}
	wg.Wait()
	assert.Equal(t, domain.StatusReady, last.Status)
}
