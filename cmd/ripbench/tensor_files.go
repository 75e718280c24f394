package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/external-adapters/npz"
)

// loadTensorFile reads a tensor in one of the accepted file forms
func loadTensorFile(path string) (entities.Tensor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npz":
		dense, err := npz.ReadFile(path)
		if err != nil {
			return entities.Tensor{}, err
		}
		return entities.DenseOf(dense), nil
	case ".csv":
		table, err := readCSVTable(path)
		if err != nil {
			return entities.Tensor{}, err
		}
		return entities.TableOf(table), nil
	case ".jsonl", ".ndjson":
		if err := checkJSONL(path); err != nil {
			return entities.Tensor{}, err
		}
		rows, rowsErr := jsonlRows(path)
		return entities.RowsOfChecked(rows, rowsErr), nil
	default:
		return entities.Tensor{}, &entities.UnsupportedTensorTypeError{Shape: filepath.Ext(path)}
	}
}

// readCSVTable parses a numeric CSV. A first row that is not numeric is the header.
func readCSVTable(path string) (*entities.Table, error) {
	//nolint:gosec // G304: Tensor path is user-provided
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tensor file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	table := &entities.Table{}
	for i, record := range records {
		row, err := parseFloats(record)
		if err != nil {
			if i == 0 {
				table.Columns = record
				continue
			}
			return nil, fmt.Errorf("csv line %d: %w", i+1, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseFloats(fields []string) ([]float64, error) {
	row := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// checkJSONL decodes every line up front so the lazy read cannot fail midway
func checkJSONL(path string) error {
	line := 0
	var decodeErr error
	err := eachJSONLine(path, func(raw []byte) bool {
		line++
		var row []float64
		if err := json.Unmarshal(raw, &row); err != nil {
			decodeErr = fmt.Errorf("jsonl line %d: %w", line, err)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// jsonlRows lazily yields one row per non-blank line. The returned func
// reports a read or decode failure once the rows are drained.
func jsonlRows(path string) (iter.Seq[[]float64], func() error) {
	var readErr error
	seq := func(yield func([]float64) bool) {
		line := 0
		var decodeErr error
		err := eachJSONLine(path, func(raw []byte) bool {
			line++
			var row []float64
			if err := json.Unmarshal(raw, &row); err != nil {
				decodeErr = fmt.Errorf("jsonl line %d: %w", line, err)
				return false
			}
			return yield(row)
		})
		readErr = errors.Join(err, decodeErr)
	}
	return seq, func() error { return readErr }
}

func eachJSONLine(path string, fn func([]byte) bool) error {
	//nolint:gosec // G304: Tensor path is user-provided
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open tensor file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read jsonl: %w", err)
	}
	return nil
}
