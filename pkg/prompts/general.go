package prompts

import (
	"strings"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// BuildGeneralPrompt creates the prompt for conversational requests that do
// not need the database.
func BuildGeneralPrompt(question string, window models.ConversationWindow) string {
	var b strings.Builder

	if ctx := FormatWindow(window); ctx != "" {
		b.WriteString("## Recent conversation\n\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Request\n\n")
	b.WriteString(question)
	b.WriteString("\n")

	return b.String()
}

// BuildGeneralSystemMessage returns the system message for general chat.
func BuildGeneralSystemMessage() string {
	return `You are a helpful data analytics assistant. You can answer questions about connected databases, write SQL on the user's behalf and build dashboards. When the user asks what you can do, explain these capabilities briefly. Keep answers short and conversational.`
}
