// Package pattern decodes the antenna switch pattern and tracks its changes.
package pattern

import "time"

// Code is the 3-bit switch pattern assembled from the three pattern lines.
// Bit 0 is LinePattern0, bit 2 is LinePattern2.
type Code uint8

// CodeUnknown is reported while DF mode is off or nothing has been sampled yet.
const CodeUnknown Code = 0

// Antenna pairs selected by the switching microcontroller.
// The pair 4-1 is signalled as 7, not 4.
var pairs = map[Code]string{
	1: "1-2",
	2: "2-3",
	3: "3-4",
	7: "4-1",
}

// Pair returns the antenna pair label, or "" if the code names no pair.
func (c Code) Pair() string {
	return pairs[c]
}

// Valid reports whether the code names an antenna pair.
func (c Code) Valid() bool {
	_, ok := pairs[c]
	return ok
}

// Change is a pattern transition to be published.
type Change struct {
	Timestamp time.Time
	Code      Code
}

// Counts tracks monitor activity since startup.
type Counts struct {
	Samples    int
	Changes    int
	ReadErrors int
}
