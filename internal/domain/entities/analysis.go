package entities

import (
	"fmt"
	"iter"
	"slices"
)

// AnalysisKind names a derived feature tensor (one file per kind per artifact)
type AnalysisKind string

// Analysis kinds produced by the feature pipeline
const (
	AnalysisOnehotPlusFuncLabels AnalysisKind = "onehot_plus_func_labels"
	AnalysisOnehot               AnalysisKind = "onehot"
)

// TensorShape tags which variant a Tensor holds
type TensorShape int

// Tensor variants
const (
	TensorUnset TensorShape = iota
	TensorDense
	TensorTable
	TensorRows
)

func (s TensorShape) String() string {
	switch s {
	case TensorDense:
		return "dense"
	case TensorTable:
		return "table"
	case TensorRows:
		return "rows"
	default:
		return "unset"
	}
}

// DenseTensor is a row-major 2D float64 array
type DenseTensor struct {
	Rows int
	Cols int
	Data []float64
}

// Table is a tabular tensor with named columns
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Tensor is a tagged union of the accepted tensor inputs.
// The zero value is not a valid tensor.
type Tensor struct {
	shape TensorShape
	dense *DenseTensor
	table *Table
	rows  iter.Seq[[]float64]
	// rowsErr reports a failure of the row source once rows is drained
	rowsErr func() error
}

// DenseOf wraps a dense array
func DenseOf(d *DenseTensor) Tensor {
	return Tensor{shape: TensorDense, dense: d}
}

// TableOf wraps a tabular structure
func TableOf(t *Table) Tensor {
	return Tensor{shape: TensorTable, table: t}
}

// RowsOf wraps a lazy sequence of rows
func RowsOf(seq iter.Seq[[]float64]) Tensor {
	return Tensor{shape: TensorRows, rows: seq}
}

// RowsOfChecked wraps a lazy row sequence whose source can fail midway.
// errFn is consulted after the sequence is drained.
func RowsOfChecked(seq iter.Seq[[]float64], errFn func() error) Tensor {
	return Tensor{shape: TensorRows, rows: seq, rowsErr: errFn}
}

// Shape reports the variant held by the tensor
func (t Tensor) Shape() TensorShape {
	return t.shape
}

// Normalize converts any accepted variant into one dense array
func (t Tensor) Normalize() (*DenseTensor, error) {
	switch t.shape {
	case TensorDense:
		if t.dense == nil {
			return nil, &UnsupportedTensorTypeError{Shape: "nil dense"}
		}
		if t.dense.Rows < 0 || t.dense.Cols < 0 {
			return nil, &UnsupportedTensorTypeError{Shape: fmt.Sprintf("dense %dx%d", t.dense.Rows, t.dense.Cols)}
		}
		if t.dense.Rows*t.dense.Cols != len(t.dense.Data) {
			return nil, fmt.Errorf("dense tensor %dx%d has %d elements", t.dense.Rows, t.dense.Cols, len(t.dense.Data))
		}
		return t.dense, nil
	case TensorTable:
		if t.table == nil {
			return nil, &UnsupportedTensorTypeError{Shape: "nil table"}
		}
		cols := len(t.table.Columns)
		if cols == 0 && len(t.table.Rows) > 0 {
			cols = len(t.table.Rows[0])
		}
		return collectRows(slices.Values(t.table.Rows), cols)
	case TensorRows:
		if t.rows == nil {
			return nil, &UnsupportedTensorTypeError{Shape: "nil rows"}
		}
		dense, err := collectRows(t.rows, -1)
		if err != nil {
			return nil, err
		}
		if t.rowsErr != nil {
			if err := t.rowsErr(); err != nil {
				return nil, err
			}
		}
		return dense, nil
	default:
		return nil, &UnsupportedTensorTypeError{Shape: t.shape.String()}
	}
}

// collectRows materializes rows, requiring a uniform width.
// width < 0 takes the width of the first row.
func collectRows(seq iter.Seq[[]float64], width int) (*DenseTensor, error) {
	out := &DenseTensor{Cols: width}
	for row := range seq {
		if out.Cols < 0 {
			out.Cols = len(row)
		}
		if len(row) != out.Cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", out.Rows, len(row), out.Cols)
		}
		out.Data = append(out.Data, row...)
		out.Rows++
	}
	if out.Cols < 0 {
		out.Cols = 0
	}
	return out, nil
}

// AnalysisRecord is one persisted artifact directory in the store
type AnalysisRecord struct {
	Dir        string
	Metadata   ArtifactMetadata
	Kinds      []AnalysisKind
	BinaryPath string // empty when the binary was not copied
}

// Hash returns the content hash recorded in the metadata
func (r *AnalysisRecord) Hash() ContentHash {
	return ContentHash(r.Metadata.BinaryHash)
}

// HasKind reports whether a tensor of the given kind was saved
func (r *AnalysisRecord) HasKind(kind AnalysisKind) bool {
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ScanResult is the per-record outcome of a store scan: a record, or a skip with reason
type ScanResult struct {
	Dir    string
	Record *AnalysisRecord
	Err    error
}

// Skipped reports whether the record was skipped
func (r ScanResult) Skipped() bool {
	return r.Err != nil
}

// StoreStats summarizes the store contents
type StoreStats struct {
	Total   int
	Skipped int
	ByOpt   map[OptLevel]int
	Other   int // records whose optimization is not a known level
}
