package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	seq := Sequence()
	assert.Equal(t, []Stage{Requirements, UserStories, TestCases}, seq)

	// mutating the copy must not affect the package order
	seq[0] = TestCases
	assert.Equal(t, Requirements, Sequence()[0])
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"requirements", Requirements, false},
		{"reqs", Requirements, false},
		{" Stories ", UserStories, false},
		{"user-stories", UserStories, false},
		{"tests", TestCases, false},
		{"test-cases", TestCases, false},
		{"deploy", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStage_Previous(t *testing.T) {
	_, ok := Requirements.Previous()
	assert.False(t, ok)

	prev, ok := UserStories.Previous()
	assert.True(t, ok)
	assert.Equal(t, Requirements, prev)

	prev, ok = TestCases.Previous()
	assert.True(t, ok)
	assert.Equal(t, UserStories, prev)
}

func TestStage_Labels(t *testing.T) {
	assert.Equal(t, "Requirements Analysis Output", Requirements.OutputLabel())
	assert.Equal(t, "User Stories Output", UserStories.OutputLabel())
	assert.Equal(t, "Test Cases Output", TestCases.OutputLabel())

	assert.Equal(t, RequirementsAgent, Requirements.DefaultAgent())
	assert.Equal(t, UserStoryAgent, UserStories.DefaultAgent())
	assert.Equal(t, TestCaseAgent, TestCases.DefaultAgent())
	assert.Empty(t, Stage("bogus").DefaultAgent())
	assert.False(t, Stage("bogus").IsValid())
}
