package gateways

import (
	"regexp"
	"strings"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

// Function report markers printed by the post-analysis script
const (
	BeginSentinel = "BEGIN FUNCTION LIST"
	EndSentinel   = "END FUNCTION LIST"

	// foundFuncMarker tags lines of the robust script: FOUND_FUNC<BENCH_SEP>name<BENCH_SEP>0x1000
	foundFuncMarker = "FOUND_FUNC"
	benchSeparator  = "<BENCH_SEP>"
	scriptLogSuffix = "(GhidraScript)"
)

// logPrefix matches the analyzer's console prefix, e.g. "INFO  List_Function_and_Entry.py> "
var logPrefix = regexp.MustCompile(`^(?:INFO|WARN|WARNING|DEBUG|ERROR)\s+[^>]*>\s*`)

// ParseFunctionReport extracts (name, address) observations from analyzer output.
// Only lines between the begin and end sentinels are considered. Malformed
// lines inside the region are skipped and reported as warnings.
func ParseFunctionReport(raw string) ([]entities.FunctionObservation, []entities.ParseWarning) {
	functions := make([]entities.FunctionObservation, 0)
	var warnings []entities.ParseWarning

	inList := false
	closed := false
	lineNo := 0
	for _, line := range strings.Split(raw, "\n") {
		lineNo++
		if !inList {
			if strings.Contains(line, BeginSentinel) {
				inList = true
			}
			continue
		}
		if strings.Contains(line, EndSentinel) {
			closed = true
			break
		}

		text := cleanReportLine(line)
		if text == "" {
			continue
		}

		obs, reason := parseReportLine(text)
		if reason != "" {
			warnings = append(warnings, entities.ParseWarning{Line: lineNo, Text: strings.TrimSpace(line), Reason: reason})
			continue
		}
		functions = append(functions, obs)
	}

	switch {
	case !inList:
		warnings = append(warnings, entities.ParseWarning{Line: lineNo, Reason: "missing begin sentinel"})
	case !closed:
		warnings = append(warnings, entities.ParseWarning{Line: lineNo, Reason: "missing end sentinel"})
	}

	return functions, warnings
}

func cleanReportLine(line string) string {
	text := strings.TrimSpace(line)
	text = logPrefix.ReplaceAllString(text, "")
	text = strings.TrimSpace(strings.TrimSuffix(text, scriptLogSuffix))
	return text
}

// parseReportLine returns the observation or a non-empty reason for rejecting the line
func parseReportLine(text string) (entities.FunctionObservation, string) {
	var name, addr string

	if idx := strings.Index(text, foundFuncMarker); idx >= 0 {
		parts := strings.Split(text[idx+len(foundFuncMarker):], benchSeparator)
		// Leading element is the empty string before the first separator
		if len(parts) != 3 {
			return entities.FunctionObservation{}, "malformed FOUND_FUNC line"
		}
		name, addr = parts[1], parts[2]
	} else {
		text = strings.TrimPrefix(text, "(")
		text = strings.TrimSuffix(text, ")")
		comma := strings.LastIndex(text, ",")
		if comma < 0 {
			return entities.FunctionObservation{}, "missing address separator"
		}
		name, addr = text[:comma], text[comma+1:]
	}

	name = strings.TrimSpace(unquote(strings.TrimSpace(name)))
	if name == "" {
		return entities.FunctionObservation{}, "empty function name"
	}

	address, err := entities.ParseAddress(unquote(strings.TrimSpace(addr)))
	if err != nil {
		return entities.FunctionObservation{}, "invalid address"
	}

	return entities.Fn(name, address), ""
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
