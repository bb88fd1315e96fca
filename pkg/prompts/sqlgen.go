package prompts

import (
	"strings"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// BuildSQLPrompt creates the SQL generation prompt from the question, the
// discovered schema and the recent conversation.
func BuildSQLPrompt(question string, schema *models.SchemaDescriptor, window models.ConversationWindow) string {
	var b strings.Builder

	b.WriteString("Write a single SQL query that answers the user's question.\n\n")

	b.WriteString("## Database Schema\n\n")
	if schema != nil && schema.DatabaseKind != "" {
		b.WriteString("Database type: " + schema.DatabaseKind + "\n\n")
	}
	b.WriteString(FormatSchema(schema))
	b.WriteString("\n\n")

	if ctx := FormatWindow(window); ctx != "" {
		b.WriteString("## Recent conversation\n\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("- Produce exactly one SELECT statement (a read-only WITH is also fine)\n")
	b.WriteString("- Use only tables and columns that appear in the schema above\n")
	b.WriteString("- No data modification of any kind (no INSERT, UPDATE, DELETE, DDL)\n")
	b.WriteString("- No SQL comments\n")
	b.WriteString("- Prefer explicit column lists over SELECT * when the question names specific fields\n")
	b.WriteString("- Use the conversation above to resolve references like \"those\" or \"the same period\"\n\n")

	b.WriteString("Return ONLY the SQL statement, no explanation, no markdown fences.\n")

	return b.String()
}

// BuildSQLRepairPrompt creates the one-shot repair prompt used after a
// generated query failed validation or execution.
func BuildSQLRepairPrompt(question, failedSQL, failure string, schema *models.SchemaDescriptor) string {
	var b strings.Builder

	b.WriteString("The following SQL query failed. Produce a corrected query.\n\n")

	b.WriteString("## Original question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("## Failed query\n\n")
	b.WriteString(failedSQL)
	b.WriteString("\n\n")

	b.WriteString("## Failure\n\n")
	b.WriteString(failure)
	b.WriteString("\n\n")

	b.WriteString("## Database Schema\n\n")
	b.WriteString(FormatSchema(schema))
	b.WriteString("\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("- Produce exactly one read-only SELECT statement\n")
	b.WriteString("- Fix the cause of the failure; do not just re-emit the same query\n")
	b.WriteString("- Use only tables and columns from the schema above\n\n")

	b.WriteString("Return ONLY the corrected SQL statement, no explanation, no markdown fences.\n")

	return b.String()
}

// BuildSQLSystemMessage returns the system message for SQL generation.
func BuildSQLSystemMessage() string {
	return `You are an expert SQL analyst. You translate natural-language questions into correct, efficient, read-only SQL queries against the schema you are given. You never modify data.`
}
