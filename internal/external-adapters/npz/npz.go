// Package npz reads and writes numpy-compatible .npz archives holding a
// single 2D array named "data".
package npz

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ochairo/ripbench/internal/domain/entities"
	"github.com/ochairo/ripbench/internal/external-adapters/atomicfile"
)

// ArrayName is the key the tensor is stored under (np.load(f)["data"])
const ArrayName = "data"

const (
	npyMagic      = "\x93NUMPY"
	headerAlign   = 64
	entryName     = ArrayName + ".npy"
	float64Descr  = "<f8"
	maxHeaderSize = 1 << 20
)

var (
	descrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// WriteFile atomically writes the tensor as a compressed .npz archive
func WriteFile(path string, tensor *entities.DenseTensor) error {
	var buf bytes.Buffer
	if err := Encode(&buf, tensor); err != nil {
		return err
	}
	return atomicfile.WriteFile(path, buf.Bytes(), 0600)
}

// Encode writes the archive to w
func Encode(w io.Writer, tensor *entities.DenseTensor) error {
	if tensor == nil {
		return fmt.Errorf("nil tensor")
	}
	if tensor.Rows < 0 || tensor.Cols < 0 {
		return fmt.Errorf("invalid tensor shape %dx%d", tensor.Rows, tensor.Cols)
	}
	if tensor.Rows*tensor.Cols != len(tensor.Data) {
		return fmt.Errorf("tensor %dx%d has %d elements", tensor.Rows, tensor.Cols, len(tensor.Data))
	}

	zw := zip.NewWriter(w)
	entry, err := zw.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create npz entry: %w", err)
	}

	if _, err := entry.Write(npyHeader(tensor.Rows, tensor.Cols)); err != nil {
		return fmt.Errorf("failed to write npy header: %w", err)
	}
	if err := binary.Write(entry, binary.LittleEndian, tensor.Data); err != nil {
		return fmt.Errorf("failed to write npy data: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish npz archive: %w", err)
	}
	return nil
}

// npyHeader builds a version 1.0 header padded to a 64-byte boundary
func npyHeader(rows, cols int) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", float64Descr, rows, cols)
	// magic(6) + version(2) + length(2) + dict + newline
	unpadded := len(npyMagic) + 2 + 2 + len(dict) + 1
	pad := (headerAlign - unpadded%headerAlign) % headerAlign
	dict += strings.Repeat(" ", pad) + "\n"

	out := make([]byte, 0, unpadded+pad)
	out = append(out, npyMagic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(dict)))
	return append(out, dict...)
}

// ReadFile reads the "data" array of an .npz archive
func ReadFile(path string) (*entities.DenseTensor, error) {
	//nolint:gosec // G304: Path comes from the store layout
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read npz file: %w", err)
	}
	return Decode(bytes.NewReader(data), int64(len(data)))
}

// Decode reads the "data" array from an archive of the given size
func Decode(r io.ReaderAt, size int64) (*entities.DenseTensor, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open npz archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", entryName, err)
		}
		//nolint:errcheck // Defer close on read-only entry
		defer rc.Close()
		return decodeNPY(rc)
	}
	return nil, fmt.Errorf("npz archive has no %q array", ArrayName)
}

func decodeNPY(r io.Reader) (*entities.DenseTensor, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("failed to read npy magic: %w", err)
	}
	if string(prefix[:len(npyMagic)]) != npyMagic {
		return nil, fmt.Errorf("not an npy array")
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("failed to read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if headerLen > maxHeaderSize {
		return nil, fmt.Errorf("npy header too large: %d bytes", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	descr, fortran, rows, cols, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	values, err := readValues(r, descr, rows*cols)
	if err != nil {
		return nil, err
	}

	tensor := &entities.DenseTensor{Rows: rows, Cols: cols, Data: values}
	if fortran {
		tensor.Data = transpose(values, rows, cols)
	}
	return tensor, nil
}

func parseHeader(h string) (descr string, fortran bool, rows, cols int, err error) {
	m := descrPattern.FindStringSubmatch(h)
	if m == nil {
		return "", false, 0, 0, fmt.Errorf("npy header missing descr")
	}
	descr = m[1]

	if m := fortranPattern.FindStringSubmatch(h); m != nil {
		fortran = m[1] == "True"
	}

	m = shapePattern.FindStringSubmatch(h)
	if m == nil {
		return "", false, 0, 0, fmt.Errorf("npy header missing shape")
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 0 {
			return "", false, 0, 0, fmt.Errorf("invalid npy shape %q", m[1])
		}
		dims = append(dims, n)
	}

	switch len(dims) {
	case 1:
		return descr, fortran, dims[0], 1, nil
	case 2:
		return descr, fortran, dims[0], dims[1], nil
	default:
		return "", false, 0, 0, fmt.Errorf("unsupported npy rank %d", len(dims))
	}
}

// readValues decodes count elements of the given dtype into float64
func readValues(r io.Reader, descr string, count int) ([]float64, error) {
	out := make([]float64, count)
	var err error
	switch descr {
	case "<f8":
		err = binary.Read(r, binary.LittleEndian, out)
	case "<f4":
		buf := make([]float32, count)
		if err = binary.Read(r, binary.LittleEndian, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case "<i8":
		buf := make([]int64, count)
		if err = binary.Read(r, binary.LittleEndian, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case "<i4":
		buf := make([]int32, count)
		if err = binary.Read(r, binary.LittleEndian, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case "|u1", "|b1":
		buf := make([]byte, count)
		if _, err = io.ReadFull(r, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read npy data: %w", err)
	}
	return out, nil
}

// transpose converts column-major data to row-major
func transpose(data []float64, rows, cols int) []float64 {
	out := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = data[c*rows+r]
		}
	}
	return out
}
