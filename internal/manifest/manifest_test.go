package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFromFile_Valid(t *testing.T) {
	m, err := ReadFromFile(filepath.Join("testdata", "valid.csv"))

	require.NoError(t, err)
	require.Len(t, m.Entries, 3)

	assert.Equal(t, StageEntry{
		Stage:         "requirements",
		Agent:         "requirements_agent",
		TriggerStatus: "awaiting-requirements",
		NextStatus:    "awaiting-requirements-approval",
	}, m.Entries[0])
	assert.Equal(t, "story_writer", m.Entries[1].Agent)
	assert.Equal(t, "done", m.Entries[2].NextStatus)
}

func TestReadFromFile_Minimal(t *testing.T) {
	m, err := ReadFromFile(filepath.Join("testdata", "minimal.csv"))

	require.NoError(t, err)
	require.Len(t, m.Entries, 3)

	// columns are matched by header name, not position
	assert.Equal(t, "requirements", m.Entries[0].Stage)
	assert.Equal(t, "requirements_agent", m.Entries[0].Agent)
	assert.Empty(t, m.Entries[0].TriggerStatus)
	assert.Empty(t, m.Entries[0].NextStatus)
}

func TestReadFromFile_NotFound(t *testing.T) {
	m, err := ReadFromFile(filepath.Join("testdata", "nonexistent.csv"))

	assert.Error(t, err)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "failed to open manifest")
}

func TestReadFromString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "failed to read manifest header"},
		{"missing stage column", "agent,next_status\nx,done\n", "missing required column: stage"},
		{"missing agent column", "stage\nrequirements\n", "missing required column: agent"},
		{"header only", "stage,agent\n", "no stage entries"},
		{"blank stage", "stage,agent\n,requirements_agent\n", "line 2: stage name is required"},
		{"bad quoting", "stage,agent\n\"requirements,x\n", "failed to read manifest line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadFromString(tt.data)
			assert.Nil(t, m)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadFromString_HeaderCaseAndSpacing(t *testing.T) {
	m, err := ReadFromString(" Stage , AGENT \nrequirements , requirements_agent\n")
	require.NoError(t, err)
	assert.Equal(t, "requirements", m.Entries[0].Stage)
	assert.Equal(t, "requirements_agent", m.Entries[0].Agent)
}

func TestManifest_StagesAndEntryFor(t *testing.T) {
	m, err := ReadFromFile(filepath.Join("testdata", "valid.csv"))
	require.NoError(t, err)

	assert.Equal(t, []string{"requirements", "user-stories", "test-cases"}, m.Stages())

	e := m.EntryFor("user-stories")
	require.NotNil(t, e)
	assert.Equal(t, "story_writer", e.Agent)

	assert.Nil(t, m.EntryFor("deploy"))
}
