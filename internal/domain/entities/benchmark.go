package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ratio is a metric value that may be undefined (zero denominator)
type Ratio struct {
	Value   float64
	Defined bool
}

// Undefined is the marker for a ratio with a zero denominator
var Undefined = Ratio{}

// RatioOf divides num by den, returning Undefined when den is zero
func RatioOf(num, den float64) Ratio {
	if den == 0 {
		return Undefined
	}
	return Ratio{Value: num / den, Defined: true}
}

func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", r.Value)
}

// MarshalJSON encodes undefined ratios as null
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes a number or null
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Ratio{Value: v, Defined: true}
	return nil
}

// Counts holds confusion-matrix sizes
type Counts struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
}

// Add returns the element-wise sum
func (c Counts) Add(o Counts) Counts {
	return Counts{
		TruePositives:  c.TruePositives + o.TruePositives,
		FalsePositives: c.FalsePositives + o.FalsePositives,
		FalseNegatives: c.FalseNegatives + o.FalseNegatives,
	}
}

// Score holds precision, recall and F1
type Score struct {
	Precision Ratio
	Recall    Ratio
	F1        Ratio
}

// Defined reports whether every component of the score is defined
func (s Score) Defined() bool {
	return s.Precision.Defined && s.Recall.Defined && s.F1.Defined
}

// Confusion is the classified outcome of one ground truth vs. recovered comparison
type Confusion struct {
	TruePositives  []FunctionObservation
	FalseNegatives []FunctionObservation
	FalsePositives []FunctionObservation
}

// Counts returns the sizes of the three lists
func (c Confusion) Counts() Counts {
	return Counts{
		TruePositives:  len(c.TruePositives),
		FalsePositives: len(c.FalsePositives),
		FalseNegatives: len(c.FalseNegatives),
	}
}

// Outcome is the scored result of one detector variant against one binary
type Outcome struct {
	TruePos             []FunctionObservation `json:"true_pos"`
	FalseNeg            []FunctionObservation `json:"false_neg"`
	FalsePos            []FunctionObservation `json:"false_pos"`
	Precision           Ratio                 `json:"precision"`
	Recall              Ratio                 `json:"recall"`
	F1                  Ratio                 `json:"f1"`
	NonstrippedWallTime float64               `json:"nonstripped_wall_time"`
	StrippedWallTime    float64               `json:"stripped_wall_time"`
}

// Counts returns the confusion sizes of the outcome
func (o *Outcome) Counts() Counts {
	return Counts{
		TruePositives:  len(o.TruePos),
		FalsePositives: len(o.FalsePos),
		FalseNegatives: len(o.FalseNeg),
	}
}

// Score returns the stored score
func (o *Outcome) Score() Score {
	return Score{Precision: o.Precision, Recall: o.Recall, F1: o.F1}
}

// BenchmarkRecord is the per-binary summary entry. Written once, never mutated.
type BenchmarkRecord struct {
	Name string `json:"name"`
	Outcome
	NoAnalysis *Outcome `json:"noanalysis,omitempty"`
}

// SweepScore is the micro-averaged result of a sweep
type SweepScore struct {
	Binaries int
	Counts   Counts
	Micro    Score
	// Macro is the mean of per-binary ratios, reported for reference only.
	Macro               Score
	UndefinedBinaries   int
	NonstrippedWallTime time.Duration
	StrippedWallTime    time.Duration
}

// TotalFunctions is the size of the ground truth across the sweep
func (s SweepScore) TotalFunctions() int {
	return s.Counts.TruePositives + s.Counts.FalseNegatives
}
