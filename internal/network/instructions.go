package network

import "time"

// Op names a physical instruction of a node's quantum processor.
type Op string

const (
	OpInit        Op = "INIT"
	OpH           Op = "H"
	OpX           Op = "X"
	OpZ           Op = "Z"
	OpS           Op = "S"
	OpCNOT        Op = "CNOT"
	OpMeasure     Op = "MEASURE"
	OpMeasureX    Op = "MEASURE_X"
	OpMeasureBell Op = "MEASURE_BELL"
)

// Instruction is one entry of a node's operation set.
type Instruction struct {
	Op       Op
	Duration time.Duration
	// Parallel is false for operations that need the node's single detector.
	Parallel bool
	// Arity is the number of memory positions the operation acts on.
	Arity int
}

// Measurement reports whether the instruction produces a classical outcome.
func (i Instruction) Measurement() bool {
	return i.Op == OpMeasure || i.Op == OpMeasureX || i.Op == OpMeasureBell
}

// DefaultInstructions returns the operation set every node is built with.
// Durations are in virtual nanoseconds.
func DefaultInstructions() []Instruction {
	return []Instruction{
		{Op: OpInit, Duration: 3 * time.Nanosecond, Parallel: true, Arity: 1},
		{Op: OpH, Duration: 1 * time.Nanosecond, Parallel: true, Arity: 1},
		{Op: OpX, Duration: 1 * time.Nanosecond, Parallel: true, Arity: 1},
		{Op: OpZ, Duration: 1 * time.Nanosecond, Parallel: true, Arity: 1},
		{Op: OpS, Duration: 1 * time.Nanosecond, Parallel: true, Arity: 1},
		{Op: OpCNOT, Duration: 4 * time.Nanosecond, Parallel: true, Arity: 2},
		{Op: OpMeasure, Duration: 7 * time.Nanosecond, Parallel: false, Arity: 1},
		{Op: OpMeasureX, Duration: 7 * time.Nanosecond, Parallel: false, Arity: 1},
		{Op: OpMeasureBell, Duration: 7 * time.Nanosecond, Parallel: false, Arity: 2},
	}
}
