package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Address is a function entry address
type Address uint64

// ParseAddress parses a hexadecimal address with or without a 0x prefix
func ParseAddress(s string) (Address, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	if v == "" {
		return 0, fmt.Errorf("empty address")
	}
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(n), nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// MarshalText renders the address as 0x-prefixed hex
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a hex address
func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// FunctionObservation is a (name, address) pair reported by a detector.
// Two observations are the same function iff their addresses match.
type FunctionObservation struct {
	Name    string
	Address Address
}

// Fn is shorthand for building an observation
func Fn(name string, addr Address) FunctionObservation {
	return FunctionObservation{Name: name, Address: addr}
}

func (f FunctionObservation) String() string {
	return fmt.Sprintf("%s@%s", f.Name, f.Address)
}

// MarshalJSON encodes the observation as ["name", "0x1000"]
func (f FunctionObservation) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Name, f.Address.String()})
}

// UnmarshalJSON decodes ["name", "0x1000"]
func (f *FunctionObservation) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("function observation: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("function observation: want [name, address], got %d elements", len(pair))
	}
	addr, err := ParseAddress(pair[1])
	if err != nil {
		return fmt.Errorf("function observation: %w", err)
	}
	f.Name = pair[0]
	f.Address = addr
	return nil
}

// Detection labels
const (
	LabelNonstripped = "nonstripped"
	LabelStripped    = "stripped"
)

// DetectionResult is the ordered output of one detector run against one binary
type DetectionResult struct {
	Label     string
	Functions []FunctionObservation
	WallTime  time.Duration
}

// DetectionPair is the cached outcome of benchmarking one binary:
// both detections plus what is unique to each side.
// Timings are cached as integer nanoseconds so a record rebuilt from
// the cache is identical to one built from a fresh run.
type DetectionPair struct {
	Nonstripped       DetectionResult
	UniqueNonstripped []FunctionObservation
	Stripped          DetectionResult
	UniqueStripped    []FunctionObservation
}

type detectionPairJSON struct {
	Nonstrip       []FunctionObservation `json:"nonstrip"`
	NonstripUnique []FunctionObservation `json:"nonstrip_unique"`
	Strip          []FunctionObservation `json:"strip"`
	StripUnique    []FunctionObservation `json:"strip_unique"`
	TimingsNs      [2]int64              `json:"timings_ns"`
}

// MarshalJSON encodes the pair in the cache document layout
func (p DetectionPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(detectionPairJSON{
		Nonstrip:       nonNil(p.Nonstripped.Functions),
		NonstripUnique: nonNil(p.UniqueNonstripped),
		Strip:          nonNil(p.Stripped.Functions),
		StripUnique:    nonNil(p.UniqueStripped),
		TimingsNs:      [2]int64{int64(p.Nonstripped.WallTime), int64(p.Stripped.WallTime)},
	})
}

// UnmarshalJSON decodes the cache document layout
func (p *DetectionPair) UnmarshalJSON(b []byte) error {
	var raw detectionPairJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Nonstripped = DetectionResult{
		Label:     LabelNonstripped,
		Functions: raw.Nonstrip,
		WallTime:  time.Duration(raw.TimingsNs[0]),
	}
	p.UniqueNonstripped = raw.NonstripUnique
	p.Stripped = DetectionResult{
		Label:     LabelStripped,
		Functions: raw.Strip,
		WallTime:  time.Duration(raw.TimingsNs[1]),
	}
	p.UniqueStripped = raw.StripUnique
	return nil
}

func nonNil(fs []FunctionObservation) []FunctionObservation {
	if fs == nil {
		return []FunctionObservation{}
	}
	return fs
}
