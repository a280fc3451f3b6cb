package config

import _ "embed"

var (
	//go:embed prompts/requirements.md
	requirementsPrompt string

	//go:embed prompts/user_story.md
	userStoryPrompt string

	//go:embed prompts/test_case.md
	testCasePrompt string

	//go:embed prompts/root.md
	rootPrompt string

	//go:embed prompts/protocol.md
	responseProtocol string
)

// ResponseProtocol returns the marker protocol appended to every stage
// instruction. Issue lines and clarification requests written this way are
// picked up by the issues package.
func ResponseProtocol() string {
	return responseProtocol
}
