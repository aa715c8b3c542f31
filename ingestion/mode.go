package ingestion

import (
	"fmt"
	"strings"
)

// Mode selects which extraction strategies run for each chunk.
type Mode string

const (
	ModeLLM  Mode = "llm"
	ModeRule Mode = "rule"
	ModeBoth Mode = "both"
)

// ParseMode validates a configured mode. Matching ignores case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeLLM, ModeRule, ModeBoth:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Strategies returns the strategy names recorded in the log for m.
func (m Mode) Strategies() []string {
	switch m {
	case ModeRule:
		return []string{"rule"}
	case ModeBoth:
		return []string{"llm", "rule"}
	}
	return []string{"llm"}
}
