package ecu

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
	"github.com/robotalks/ecu.go/pkg/spsc"
)

// Recorder defaults.
const (
	RecordStorageSize     = 4096
	DefaultRecordPeriod   = time.Millisecond
	DefaultTransferPeriod = time.Millisecond

	// MaxCatchUp bounds the periods processed in one tick. Backlog beyond
	// that is discarded.
	MaxCatchUp = 8
)

// RecorderState is the state of the Recorder.
type RecorderState uint8

// Recorder states.
const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderTransferring
)

// String implements fmt.Stringer.
func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "Idle"
	case RecorderRecording:
		return "Recording"
	case RecorderTransferring:
		return "Transferring"
	}
	return fmt.Sprintf("RecorderState(%d)", uint8(s))
}

// ErrNonPositivePeriod rejects a zero or negative period.
var ErrNonPositivePeriod = errors.New("period must be positive")

// Recorder samples data frames into a bounded queue and later
// transfers them to mission control.
type Recorder struct {
	queue          *spsc.Ring[hal.ECUDataFrame]
	recordPeriod   time.Duration
	transferPeriod time.Duration

	state       RecorderState
	recordAcc   time.Duration
	transferAcc time.Duration
	overflows   uint64

	pending    hal.ECUDataFrame
	hasPending bool
}

// NewRecorder creates a Recorder over queue.
func NewRecorder(queue *spsc.Ring[hal.ECUDataFrame], recordPeriod, transferPeriod time.Duration) (*Recorder, error) {
	if queue == nil {
		return nil, errors.New("recorder queue required")
	}
	if recordPeriod <= 0 {
		return nil, fmt.Errorf("record %w", ErrNonPositivePeriod)
	}
	if transferPeriod <= 0 {
		return nil, fmt.Errorf("transfer %w", ErrNonPositivePeriod)
	}
	return &Recorder{
		queue:          queue,
		recordPeriod:   recordPeriod,
		transferPeriod: transferPeriod,
	}, nil
}

// State returns the current state.
func (r *Recorder) State() RecorderState {
	return r.state
}

// Overflows returns how many times recording stopped on a full queue.
func (r *Recorder) Overflows() uint64 {
	return r.overflows
}

// Stored returns the number of frames waiting for transfer.
func (r *Recorder) Stored() int {
	n := r.queue.Len()
	if r.hasPending {
		n++
	}
	return n
}

// SetRecording starts recording from Idle or stops an active recording.
// It has no effect while transferring.
func (r *Recorder) SetRecording(enabled bool) {
	switch {
	case enabled && r.state == RecorderIdle:
		r.state = RecorderRecording
		r.recordAcc = 0
		glog.Info("recorder: recording")
	case !enabled && r.state == RecorderRecording:
		r.state = RecorderIdle
		glog.Infof("recorder: stopped with %d frames", r.queue.Len())
	}
}

// TransferData starts transferring from any state.
func (r *Recorder) TransferData() {
	r.state = RecorderTransferring
	r.recordAcc = 0
	r.transferAcc = 0
	glog.Infof("recorder: transferring %d frames", r.Stored())
}

// Update advances the recorder by elapsed. snapshot builds the frame to
// record, t carries transferred frames.
func (r *Recorder) Update(elapsed time.Duration, snapshot func() hal.ECUDataFrame, t comms.Transport) {
	switch r.state {
	case RecorderRecording:
		r.updateRecording(elapsed, snapshot)
	case RecorderTransferring:
		r.updateTransferring(elapsed, t)
	}
}

func (r *Recorder) updateRecording(elapsed time.Duration, snapshot func() hal.ECUDataFrame) {
	r.recordAcc += elapsed
	for n := 0; r.recordAcc >= r.recordPeriod; n++ {
		if n >= MaxCatchUp {
			r.recordAcc %= r.recordPeriod
			break
		}
		r.recordAcc -= r.recordPeriod
		if !r.queue.Push(snapshot()) {
			r.state = RecorderIdle
			r.overflows++
			glog.Warningf("recorder: storage full after %d frames, recording stopped", r.queue.Len())
			return
		}
	}
}

func (r *Recorder) updateTransferring(elapsed time.Duration, t comms.Transport) {
	r.transferAcc += elapsed
	for n := 0; r.transferAcc >= r.transferPeriod; n++ {
		if n >= MaxCatchUp {
			r.transferAcc %= r.transferPeriod
			break
		}
		r.transferAcc -= r.transferPeriod
		if !r.hasPending {
			frame, ok := r.queue.Pop()
			if !ok {
				r.state = RecorderIdle
				glog.Info("recorder: transfer complete")
				return
			}
			r.pending, r.hasPending = frame, true
		}
		err := t.Transmit(comms.RecordedData{Frame: r.pending}, comms.MissionControl)
		if err != nil && comms.IsTransient(err) {
			glog.V(2).Infof("recorder: transfer deferred: %v", err)
			return
		}
		if err != nil {
			glog.Errorf("recorder: drop recorded frame: %v", err)
		}
		r.hasPending = false
	}
}
