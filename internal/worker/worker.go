package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-pixel-worker/internal/minion"
	"go-pixel-worker/internal/models"
	"go-pixel-worker/internal/pipeline"
)

var ErrOperationPanic = errors.New("operation panicked")

type ReplyFunc func(reply models.Reply)

// WorkerService accepts one message at a time and later reports exactly one reply.
type WorkerService interface {
	Send(msg models.Message)
}

type Worker struct {
	id      int
	ctx     context.Context
	minion  *minion.Minion
	inbox   chan models.Message
	onReply ReplyFunc
}

func NewWorker(ctx context.Context, id int, m *minion.Minion, onReply ReplyFunc) *Worker {
	return &Worker{
		id:      id,
		ctx:     ctx,
		minion:  m,
		inbox:   make(chan models.Message, 1),
		onReply: onReply,
	}
}

func (w *Worker) Run(exitWorker func()) {
	slog.Debug("Started worker Run", "workerID", w.id)
	for {
		select {
		case <-w.ctx.Done():
			slog.Debug("Cancellation request received, won't accept any more jobs.", "workerID", w.id)
			exitWorker()
			return
		case msg := <-w.inbox:
			reply := w.HandleMessage(msg)
			if w.ctx.Err() != nil {
				slog.Debug("Dropping reply of cancelled worker", "workerID", w.id, "jobID", msg.JobID)
				continue
			}
			w.onReply(reply)
		}
	}
}

// Send copies the buffers and clones meta so the worker never aliases caller state.
func (w *Worker) Send(msg models.Message) {
	buffers := make([][]byte, len(msg.Buffers))
	for i, b := range msg.Buffers {
		buffers[i] = bytes.Clone(b)
		if buffers[i] == nil {
			buffers[i] = []byte{}
		}
	}
	msg.Buffers = buffers
	msg.Meta = pipeline.CloneMeta(msg.Meta)

	select {
	case w.inbox <- msg:
	case <-w.ctx.Done():
		slog.Warn("Send on stopped worker", "workerID", w.id, "jobID", msg.JobID)
	}
}

func (w *Worker) HandleMessage(msg models.Message) models.Reply {
	slog.Debug("Handling job", "workerID", w.id, "jobID", msg.JobID, "buffers", len(msg.Buffers))
	return handle(w.id, w.minion, msg)
}

func handle(id int, m *minion.Minion, msg models.Message) (reply models.Reply) {
	reply = models.Reply{JobID: msg.JobID, Worker: id, Meta: msg.Meta}
	defer func() {
		if r := recover(); r != nil {
			reply.Buffer = nil
			reply.Err = fmt.Errorf("worker %d: %w: %v", id, ErrOperationPanic, r)
		}
	}()
	buf, err := m.Run(msg)
	if err != nil {
		reply.Err = fmt.Errorf("worker %d: %w", id, err)
		return reply
	}
	reply.Buffer = buf
	return reply
}
