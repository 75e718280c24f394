// Package entities defines core domain models and data structures.
package entities

import (
	"fmt"
	"strings"
)

// ContentHash is the hex digest identifying a binary in the store
type ContentHash string

// String returns the hex digest
func (h ContentHash) String() string {
	return string(h)
}

// HashAlgorithm names the digest used to address store entries
type HashAlgorithm string

// Supported hash algorithms
const (
	HashSHA256 HashAlgorithm = "sha256"
	HashMD5    HashAlgorithm = "md5" // legacy ripbin stores
	HashXXH64  HashAlgorithm = "xxh64"
)

// FileFormat is the container format of a compiled binary
type FileFormat string

// Known file formats
const (
	FormatELF     FileFormat = "elf"
	FormatPE      FileFormat = "pe"
	FormatMachO   FileFormat = "macho"
	FormatUnknown FileFormat = "unknown"
)

// OptLevel is a compiler optimization level
type OptLevel string

// Optimization levels understood by the benchmark
const (
	OptO0 OptLevel = "O0"
	OptO1 OptLevel = "O1"
	OptO2 OptLevel = "O2"
	OptO3 OptLevel = "O3"
	OptOs OptLevel = "Os"
	OptOz OptLevel = "Oz"
)

// AllOptLevels lists optimization levels in reporting order
var AllOptLevels = []OptLevel{OptO0, OptO1, OptO2, OptO3, OptOs, OptOz}

// ParseOptLevel normalizes "o3", "O3", "3", "z" etc. into an OptLevel
func ParseOptLevel(s string) (OptLevel, error) {
	v := strings.TrimSpace(s)
	if len(v) == 2 && (v[0] == 'o' || v[0] == 'O') {
		v = v[1:]
	}
	switch strings.ToLower(v) {
	case "0":
		return OptO0, nil
	case "1":
		return OptO1, nil
	case "2":
		return OptO2, nil
	case "3":
		return OptO3, nil
	case "s":
		return OptOs, nil
	case "z":
		return OptOz, nil
	}
	return "", fmt.Errorf("unknown optimization level: %q", s)
}

// Matches reports whether a raw metadata optimization string refers to this level.
// Legacy metadata stores only the suffix ("3", "z").
func (o OptLevel) Matches(raw string) bool {
	parsed, err := ParseOptLevel(raw)
	return err == nil && parsed == o
}

// BinaryArtifact is a compiled file plus its provenance. Identity is the content hash.
type BinaryArtifact struct {
	Name         string
	Path         string
	Hash         ContentHash
	Language     string
	Compiler     string
	Optimization OptLevel
	FileFormat   FileFormat
	Stripped     bool
}

// ArtifactMetadata is the metadata document persisted next to each artifact
type ArtifactMetadata struct {
	BinaryName     string `json:"binary_name"`
	BinaryHash     string `json:"binary_hash"`
	Target         string `json:"target"`
	FileType       string `json:"filetype"`
	Optimization   string `json:"optimization"`
	CrateName      string `json:"crate_name"`
	FlagList       string `json:"flag_list"`
	CompileCommand string `json:"compile_command"`
	Language       string `json:"language,omitempty"`
	Compiler       string `json:"compiler,omitempty"`
}

// Validate checks the fields every metadata document must carry
func (m *ArtifactMetadata) Validate() error {
	if m.BinaryName == "" {
		return fmt.Errorf("metadata missing binary_name")
	}
	if m.BinaryHash == "" {
		return fmt.Errorf("metadata missing binary_hash")
	}
	return nil
}
