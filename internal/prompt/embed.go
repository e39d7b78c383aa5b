package prompt

import _ "embed"

// Embeds for prompt templates used by the prompt package.

//go:embed prompts/generate.txt
var generateTemplate string

//go:embed prompts/chat-system.txt
var chatSystemTemplate string

//go:embed prompts/recommend.txt
var recommendTemplate string
