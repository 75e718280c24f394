package gateways

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// binaryInspector reads container-level facts about a binary using debug/elf,
// debug/pe and debug/macho. No external tools required.
type binaryInspector struct{}

// NewBinaryInspector creates a new binary inspector
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewBinaryInspector() *binaryInspector {
	return &binaryInspector{}
}

// DetectFormat reports the container format, FormatUnknown for anything else
func (i *binaryInspector) DetectFormat(binaryPath string) (entities.FileFormat, error) {
	if f, err := elf.Open(binaryPath); err == nil {
		//nolint:errcheck // Close on read-only file
		f.Close()
		return entities.FormatELF, nil
	}
	if f, err := macho.Open(binaryPath); err == nil {
		//nolint:errcheck // Close on read-only file
		f.Close()
		return entities.FormatMachO, nil
	}
	if f, err := macho.OpenFat(binaryPath); err == nil {
		//nolint:errcheck // Close on read-only file
		f.Close()
		return entities.FormatMachO, nil
	}
	if f, err := pe.Open(binaryPath); err == nil {
		//nolint:errcheck // Close on read-only file
		f.Close()
		return entities.FormatPE, nil
	}
	return entities.FormatUnknown, nil
}

// HasSymbols reports whether the binary still carries a symbol table
func (i *binaryInspector) HasSymbols(binaryPath string) (bool, error) {
	format, err := i.DetectFormat(binaryPath)
	if err != nil {
		return false, err
	}

	switch format {
	case entities.FormatELF:
		return i.elfHasSymbols(binaryPath)
	case entities.FormatMachO:
		return i.machoHasSymbols(binaryPath)
	case entities.FormatPE:
		return i.peHasSymbols(binaryPath)
	default:
		return false, fmt.Errorf("unsupported binary format: %s", binaryPath)
	}
}

func (i *binaryInspector) elfHasSymbols(binaryPath string) (bool, error) {
	f, err := elf.Open(binaryPath)
	if err != nil {
		return false, fmt.Errorf("failed to open ELF file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return f.Section(".symtab") != nil, nil
}

func (i *binaryInspector) machoHasSymbols(binaryPath string) (bool, error) {
	f, err := macho.Open(binaryPath)
	if err != nil {
		// Universal binaries are judged by their first architecture
		fat, fatErr := macho.OpenFat(binaryPath)
		if fatErr != nil {
			return false, fmt.Errorf("failed to open Mach-O file: %w", err)
		}
		//nolint:errcheck // Defer close on read-only file
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return false, nil
		}
		f = fat.Arches[0].File
	} else {
		//nolint:errcheck // Defer close on read-only file
		defer f.Close()
	}

	return f.Symtab != nil && len(f.Symtab.Syms) > 0, nil
}

func (i *binaryInspector) peHasSymbols(binaryPath string) (bool, error) {
	f, err := pe.Open(binaryPath)
	if err != nil {
		return false, fmt.Errorf("failed to open PE file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return len(f.Symbols) > 0, nil
}
