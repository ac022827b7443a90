package autodiff

import "github.com/born-ml/prune/internal/tensor"

// Operation is one recorded backend call.
type Operation struct {
	Name   string
	Inputs []*tensor.RawTensor
	Output *tensor.RawTensor
}

// GradientTape records operations executed while recording is on.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	ops := tape.Operations()
type GradientTape struct {
	operations []Operation
	recording  bool
}

// NewGradientTape creates a tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording reports whether operations are being recorded.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record appends op if the tape is recording.
func (t *GradientTape) Record(op Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Operations returns the recorded operations in execution order.
func (t *GradientTape) Operations() []Operation {
	return t.operations
}

// Len returns the number of recorded operations.
func (t *GradientTape) Len() int {
	return len(t.operations)
}

// Clear drops all recorded operations. The recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}
