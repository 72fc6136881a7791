package worker

import (
	"log/slog"

	"go-pixel-worker/internal/minion"
	"go-pixel-worker/internal/models"
)

// FauxWorker runs the minion on the caller's own sequence instead of a goroutine
// of its own. The work happens on a later task, never inside Send.
type FauxWorker struct {
	minion  *minion.Minion
	seq     TaskPoster
	onReply ReplyFunc
}

func NewFauxWorker(m *minion.Minion, seq TaskPoster, onReply ReplyFunc) *FauxWorker {
	return &FauxWorker{minion: m, seq: seq, onReply: onReply}
}

func (f *FauxWorker) Send(msg models.Message) {
	posted := f.seq.PostTask(func() {
		f.onReply(handle(0, f.minion, msg))
	})
	if !posted {
		slog.Warn("Send on stopped in-process worker", "jobID", msg.JobID)
	}
}
