package diary

import "strings"

// DefaultPrompt is used when the caller does not provide one.
const DefaultPrompt = "Write a short first-person diary entry about my day based on the activity record below. " +
	"Mention what I spent the most time on, keep a warm and reflective tone, and format it as markdown."

// BuildPrompt composes the single user message sent to the model.
func BuildPrompt(input Input) string {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return prompt + "\n\nHere is today's activity record data:\n" + input.ActivitiesJSON
}
