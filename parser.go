package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// scriptSummaryParser is the built-in document parser: it derives a small
// structural summary of a script. Applications embedding the engine inject
// their own parser; the CLI only needs enough to track load state.
type scriptSummaryParser struct{}

type scriptSummary struct {
	Path      string `json:"path"`
	LineCount int    `json:"line_count"`
	Scenes    int    `json:"scenes"`
}

func (scriptSummaryParser) Parse(relativePath string, content []byte) ([]byte, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty script")
	}

	summary := scriptSummary{
		Path:      relativePath,
		LineCount: strings.Count(text, "\n") + 1,
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "INT.") || strings.HasPrefix(trimmed, "EXT.") ||
			strings.HasPrefix(trimmed, "INT/EXT.") || strings.HasPrefix(trimmed, ".") && len(trimmed) > 1 {
			summary.Scenes++
		}
	}

	return json.Marshal(summary)
}
