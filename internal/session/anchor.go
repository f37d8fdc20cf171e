package session

// ComputeAnchor derives the absolute-epoch anchor that converts a track's
// recognizer-relative timestamps into absolute time: the wall-clock epoch of
// the first frame minus the frame's own source timestamp.
func ComputeAnchor(firstWallClockEpochSec float64, firstSourceTimestampMs int64) float64 {
	return firstWallClockEpochSec - float64(firstSourceTimestampMs)/1000
}

// Anchor holds a track's epoch anchor. It is set from the first audio frame
// of the track and never recomputed.
type Anchor struct {
	epoch float64
	set   bool
}

// Set establishes the anchor from first-frame timing. Calls after the first
// are no-ops.
func (a *Anchor) Set(firstWallClockEpochSec float64, firstSourceTimestampMs int64) {
	if a.set {
		return
	}
	a.epoch = ComputeAnchor(firstWallClockEpochSec, firstSourceTimestampMs)
	a.set = true
}

// Ready reports whether the anchor has been established.
func (a *Anchor) Ready() bool {
	return a.set
}

// Epoch returns the anchor in absolute epoch seconds. Meaningful only when
// Ready.
func (a *Anchor) Epoch() float64 {
	return a.epoch
}
