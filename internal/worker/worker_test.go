package worker

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pixel-worker/internal/minion"
	"go-pixel-worker/internal/models"
	"go-pixel-worker/internal/pipeline"
)

func incrementAll(px []pipeline.PixelValue, meta any) []pipeline.PixelValue {
	if m, ok := meta.(pipeline.Meta); ok {
		m["count"] = m["count"].(int) + 1
	}
	for c := range px[0] {
		px[0][c]++
	}
	return px
}

func collect(t *testing.T) (ReplyFunc, <-chan models.Reply) {
	t.Helper()
	ch := make(chan models.Reply, 16)
	return func(r models.Reply) { ch <- r }, ch
}

func waitReply(t *testing.T, ch <-chan models.Reply) models.Reply {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
	return models.Reply{}
}

func TestSequence_RunsInOrder(t *testing.T) {
	seq := NewSequence()
	go seq.Run()
	defer seq.Stop()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		seq.PostTask(func() { got = append(got, i) })
	}
	seq.PostTask(func() { close(done) })
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSequence_PostAfterStop(t *testing.T) {
	seq := NewSequence()
	seq.Stop()
	seq.Stop()
	assert.False(t, seq.PostTask(func() {}))
}

func TestWorker_IsolatesMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	onReply, replies := collect(t)

	w := NewWorker(ctx, 3, minion.New(pipeline.Pixels(pipeline.PixelFunc(incrementAll))), onReply)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.Run(wg.Done)

	input := []byte{1, 2, 3, 4}
	meta := pipeline.Meta{"count": 0}
	jobID := uuid.New()
	w.Send(models.Message{JobID: jobID, Buffers: [][]byte{input}, Meta: meta})

	r := waitReply(t, replies)
	require.NoError(t, r.Err)
	assert.Equal(t, jobID, r.JobID)
	assert.Equal(t, 3, r.Worker)
	assert.Equal(t, []byte{2, 3, 4, 5}, r.Buffer)
	assert.Equal(t, 1, r.Meta.(pipeline.Meta)["count"])

	assert.Equal(t, []byte{1, 2, 3, 4}, input, "caller buffer untouched")
	assert.Equal(t, 0, meta["count"], "caller meta untouched")

	cancel()
	wg.Wait()
}

func TestWorker_RecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	onReply, replies := collect(t)

	boom := pipeline.PixelFunc(func([]pipeline.PixelValue, any) []pipeline.PixelValue { panic("boom") })
	w := NewWorker(ctx, 0, minion.New(pipeline.Pixels(boom)), onReply)
	go w.Run(func() {})

	w.Send(models.Message{Buffers: [][]byte{{1, 2, 3, 4}}})
	r := waitReply(t, replies)
	assert.ErrorIs(t, r.Err, ErrOperationPanic)
	assert.Nil(t, r.Buffer)

	// the worker keeps serving after a failure
	w.Send(models.Message{Buffers: [][]byte{{1, 2, 3, 4}}})
	r = waitReply(t, replies)
	assert.ErrorIs(t, r.Err, ErrOperationPanic)
}

func TestFauxWorker_RepliesOnLaterTask(t *testing.T) {
	seq := NewSequence()
	go seq.Run()
	defer seq.Stop()
	onReply, replies := collect(t)

	f := NewFauxWorker(minion.New(pipeline.Pixels(pipeline.PixelFunc(incrementAll))), seq, onReply)
	meta := pipeline.Meta{"count": 0}

	sent := make(chan bool, 1)
	seq.PostTask(func() {
		f.Send(models.Message{Buffers: [][]byte{{1, 2, 3, 4}}, Meta: meta})
		sent <- len(replies) == 0
	})
	assert.True(t, <-sent, "reply must not arrive inside Send")

	r := waitReply(t, replies)
	require.NoError(t, r.Err)
	assert.Equal(t, []byte{2, 3, 4, 5}, r.Buffer)
	assert.Equal(t, 1, meta["count"], "in-process worker shares meta")
}

func TestWorkerPool_Size(t *testing.T) {
	pixels := pipeline.Pixels(pipeline.PixelFunc(incrementAll))
	images := pipeline.Images(pipeline.ImageFunc(func(i []*image.NRGBA, _ any) []*image.NRGBA { return i }))

	tests := []struct {
		name      string
		p         *pipeline.Pipeline
		threads   int
		want      int
		inProcess bool
	}{
		{"in-process", pixels, 0, 1, true},
		{"single", pixels, 1, 1, false},
		{"four", pixels, 4, 4, false},
		{"negative", pixels, -2, 1, false},
		{"image forced to one", images, 4, 1, false},
		{"image in-process", images, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := NewSequence()
			pool := NewWorkerPool(context.Background(), tt.p, tt.threads, seq, func(models.Reply) {})
			require.NoError(t, pool.Init())
			defer pool.Stop()

			assert.Equal(t, tt.want, pool.Size())
			assert.Equal(t, tt.inProcess, pool.InProcess())
			for i := 0; i < pool.Size(); i++ {
				assert.NotNil(t, pool.Worker(i))
			}
		})
	}
}

func TestWorkerPool_StopDropsReplies(t *testing.T) {
	onReply, replies := collect(t)
	pool := NewWorkerPool(context.Background(), pipeline.Pixels(pipeline.PixelFunc(incrementAll)), 2, NewSequence(), onReply)
	require.NoError(t, pool.Init())
	pool.Stop()

	pool.Worker(0).Send(models.Message{Buffers: [][]byte{{1, 2, 3, 4}}})
	select {
	case r := <-replies:
		t.Fatalf("unexpected reply after stop: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}
