package prompts

import (
	"fmt"
	"strings"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// BuildIntentPrompt creates the classification prompt for routing a user
// question. The model must answer with a single JSON object naming one of
// the four request kinds.
func BuildIntentPrompt(question string, window models.ConversationWindow, hasDatasource bool) string {
	var b strings.Builder

	b.WriteString("Classify the user's request into exactly one category.\n\n")

	b.WriteString("## Categories\n\n")
	b.WriteString("- `general`: Greetings, questions about capabilities, or anything not answerable from the connected database\n")
	b.WriteString("- `sql`: The user wants data retrieved from the database (counts, lists, lookups, aggregations)\n")
	b.WriteString("- `dashboard`: The user wants a visual dashboard or charts built from data they already asked about\n")
	b.WriteString("- `sql_and_dashboard`: The user wants data retrieved AND visualized in one request (e.g. \"show me sales by month as a chart\")\n\n")

	if !hasDatasource {
		b.WriteString("Note: no database is connected for this conversation.\n\n")
	}

	if ctx := FormatWindow(window); ctx != "" {
		b.WriteString("## Recent conversation\n\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Request\n\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("## Output Format\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString("```json\n")
	b.WriteString(fmt.Sprintf("{\"intent\": \"%s|%s|%s|%s\"}\n",
		models.KindGeneral, models.KindSQL, models.KindDashboard, models.KindSQLAndDashboard))
	b.WriteString("```\n")

	return b.String()
}

// BuildIntentSystemMessage returns the system message for intent classification.
func BuildIntentSystemMessage() string {
	return `You are a request router for a data analytics assistant. You classify incoming questions so they can be handled by the right pipeline. Respond only with the requested JSON.`
}
