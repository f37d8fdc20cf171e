package transcript

import "math"

const nanosPerSecond = 1_000_000_000

// Timestamp is a point in time expressed as whole seconds plus nanoseconds.
// Nanos is always normalized to [0, 1e9); negative instants borrow from
// Seconds, so -0.5s is {Seconds: -1, Nanos: 500000000}. The same type is used
// for offsets between timestamps.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// TimestampFromSeconds decomposes fractional seconds into a normalized
// Timestamp by floor/fractional-remainder, not string truncation.
func TimestampFromSeconds(sec float64) Timestamp {
	whole := math.Floor(sec)
	nanos := int64(math.Round((sec - whole) * nanosPerSecond))
	t := Timestamp{Seconds: int64(whole), Nanos: 0}
	// Rounding the fraction can land exactly on a full second.
	if nanos >= nanosPerSecond {
		t.Seconds++
		nanos -= nanosPerSecond
	}
	t.Nanos = int32(nanos)
	return t
}

// Float returns the timestamp as fractional seconds. Lossy above ~2^53 ns;
// used only for logging and millisecond-rounded annotations.
func (t Timestamp) Float() float64 {
	return float64(t.Seconds) + float64(t.Nanos)/nanosPerSecond
}

// Add returns t shifted by d with carry-safe nanosecond arithmetic: a nanos
// sum >= 1e9 carries one second, a negative sum borrows one.
func (t Timestamp) Add(d Timestamp) Timestamp {
	sec := t.Seconds + d.Seconds
	nanos := int64(t.Nanos) + int64(d.Nanos)
	if nanos >= nanosPerSecond {
		sec++
		nanos -= nanosPerSecond
	} else if nanos < 0 {
		sec--
		nanos += nanosPerSecond
	}
	return Timestamp{Seconds: sec, Nanos: int32(nanos)}
}

// Sub returns t - d as a normalized Timestamp, borrowing from Seconds when
// the nanos difference underflows.
func (t Timestamp) Sub(d Timestamp) Timestamp {
	sec := t.Seconds - d.Seconds
	nanos := int64(t.Nanos) - int64(d.Nanos)
	if nanos < 0 {
		sec--
		nanos += nanosPerSecond
	}
	return Timestamp{Seconds: sec, Nanos: int32(nanos)}
}

// Compare orders two timestamps: -1 if t < u, 0 if equal, 1 if t > u.
func (t Timestamp) Compare(u Timestamp) int {
	if t.Seconds != u.Seconds {
		if t.Seconds < u.Seconds {
			return -1
		}
		return 1
	}
	if t.Nanos != u.Nanos {
		if t.Nanos < u.Nanos {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Compare(u) < 0
}

// OffsetBetween returns the offset from an earlier epoch instant to a later
// one, expressed as a normalized Timestamp. A secondary stream that starts
// 5.25s after the primary anchor yields {5, 250000000}.
func OffsetBetween(laterEpochSec, earlierEpochSec float64) Timestamp {
	return TimestampFromSeconds(laterEpochSec - earlierEpochSec)
}
