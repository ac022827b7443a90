package autodiff

// Recorder is the part of a tape that controls whether operations are tracked.
type Recorder interface {
	IsRecording() bool
	StartRecording()
	StopRecording()
}

// NoGrad suspends recording on r and returns a function restoring the previous
// state. Scopes nest:
//
//	restore := autodiff.NoGrad(tape)
//	defer restore()
//
// A nil recorder yields a no-op restore.
func NoGrad(r Recorder) (restore func()) {
	if r == nil {
		return func() {}
	}

	wasRecording := r.IsRecording()
	r.StopRecording()
	return func() {
		if wasRecording {
			r.StartRecording()
		}
	}
}
