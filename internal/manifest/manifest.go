// Package manifest reads stage manifest files.
//
// A stage manifest binds each workflow stage to the agent that serves it and
// records the statuses the stage is triggered by and leads to. It lets a
// project swap in its own agents without touching the stage order, which is
// fixed and validated by the router.
//
// CSV format:
//
//	stage,agent,trigger_status,next_status
//	requirements,requirements_agent,awaiting-requirements,awaiting-requirements-approval
//	user-stories,user_story_agent,awaiting-story-generation,awaiting-story-approval
//	test-cases,test_case_agent,awaiting-test-generation,done
//
// Columns are located by header name, so their order is free and unknown
// columns are ignored.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// StageEntry represents a single row in the stage manifest CSV.
type StageEntry struct {
	// Stage is the stage name (e.g., "requirements", "user-stories").
	Stage string

	// Agent is the agent serving the stage, matching a key in the agents
	// configuration. Empty means the stock agent.
	Agent string

	// TriggerStatus is the session status that runs this stage.
	TriggerStatus string

	// NextStatus is the status set after the stage produces output.
	NextStatus string
}

// Manifest holds all stage entries parsed from a manifest CSV file.
type Manifest struct {
	// Entries are the stage entries in file order.
	Entries []StageEntry
}

// ReadFromFile reads and parses a stage manifest CSV file.
func ReadFromFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

// ReadFromString parses a stage manifest from a CSV string.
func ReadFromString(data string) (*Manifest, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	var entries []StageEntry
	lineNum := 1 // header was line 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", lineNum, err)
		}

		entry := StageEntry{
			Stage:         getField(record, colIndex, "stage"),
			Agent:         getField(record, colIndex, "agent"),
			TriggerStatus: getField(record, colIndex, "trigger_status"),
			NextStatus:    getField(record, colIndex, "next_status"),
		}

		if entry.Stage == "" {
			return nil, fmt.Errorf("manifest line %d: stage name is required", lineNum)
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no stage entries")
	}

	return &Manifest{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in the manifest CSV.
var requiredColumns = []string{"stage", "agent"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("manifest missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Stages returns the stage names in file order.
func (m *Manifest) Stages() []string {
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Stage)
	}
	return out
}

// EntryFor returns the first entry for the given stage, or nil.
func (m *Manifest) EntryFor(stageName string) *StageEntry {
	for _, e := range m.Entries {
		if e.Stage == stageName {
			return &e
		}
	}
	return nil
}
