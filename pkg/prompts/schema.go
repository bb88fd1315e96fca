// Package prompts builds the LLM prompts used by the agent: intent
// classification, SQL generation, query repair and general chat.
package prompts

import (
	"fmt"
	"strings"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

// FormatSchema renders a schema descriptor as compact prompt text: one
// section per table listing columns with their types and key flags.
func FormatSchema(schema *models.SchemaDescriptor) string {
	if schema == nil || len(schema.Tables) == 0 {
		return "(no tables discovered)"
	}

	var b strings.Builder
	for _, table := range schema.Tables {
		name := table.Name
		if table.Schema != "" && table.Schema != "public" && table.Schema != "dbo" {
			name = table.Schema + "." + table.Name
		}
		b.WriteString(fmt.Sprintf("Table: %s\n", name))
		for _, col := range table.Columns {
			flags := ""
			if col.IsPrimary {
				flags += " [PK]"
			}
			if col.IsNullable {
				flags += " (nullable)"
			}
			b.WriteString(fmt.Sprintf("  - %s (%s)%s\n", col.Name, col.DataType, flags))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatWindow renders a conversation window as prompt text, oldest first.
func FormatWindow(window models.ConversationWindow) string {
	if len(window) == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range window {
		b.WriteString(fmt.Sprintf("%s: %s\n", entry.Role, entry.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
