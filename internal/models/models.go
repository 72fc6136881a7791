package models

import (
	"github.com/google/uuid"
)

// Callback receives the result of one Process call. A nil output with a nil error
// means the job was dropped from a full queue.
type Callback func(err error, output *Image, meta any)

type Job struct {
	ID       uuid.UUID
	Inputs   []*Image
	Meta     any
	Callback Callback
}

func NewJob(inputs []*Image, meta any, cb Callback) *Job {
	return &Job{
		ID:       uuid.New(),
		Inputs:   inputs,
		Meta:     meta,
		Callback: cb,
	}
}

func (j *Job) Width() int {
	return j.Inputs[0].Width
}

func (j *Job) Height() int {
	return j.Inputs[0].Height
}

// Length is the byte length of each input buffer.
func (j *Job) Length() int {
	return len(j.Inputs[0].Data)
}

// Message is what a worker receives. Buffers hold one entry per job input, all of
// the same length.
type Message struct {
	JobID    uuid.UUID
	Buffers  [][]byte
	Meta     any
	ImageOps bool
	Width    int
	Height   int
}

type Reply struct {
	JobID  uuid.UUID
	Worker int
	Buffer []byte
	Meta   any
	Err    error
}
