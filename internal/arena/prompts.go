package arena

import (
	"fmt"
	"strings"
)

// questionSystemPrompt instructs backend A to write count questions as
// {"questions": [...]}, optionally steered by direction.
func questionSystemPrompt(count int, direction string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an AI assistant. Your task is to write %d questions based on the provided document content.\n", count)
	sb.WriteString("Your reply must be a valid JSON object containing only a \"questions\" key whose value is an array of question strings.")
	if d := strings.TrimSpace(direction); d != "" {
		fmt.Fprintf(&sb, "\nWhen writing the questions, follow this direction: %q", d)
	}
	sb.WriteString("\nExample: {\"questions\": [\"First question?\", \"Second question?\"]}")
	return sb.String()
}

func questionUserPrompt(content string) string {
	return "Document content:\n" + content
}

// answerSystemPrompt carries the document so every backend answers from the same text.
func answerSystemPrompt(content string) string {
	return "You are an AI assistant.\n" +
		"Your task is to give a thorough answer to each of the following questions based on the provided document content.\n" +
		"Your reply must be a valid JSON object whose \"questions\" field is an array.\n" +
		"Every object in the array must contain the \"question\" you answered, copied exactly without changes, and the \"answer\" you wrote.\n" +
		"Document content:\n" + content + "\n"
}

func answerUserPrompt(questions []string) string {
	var sb strings.Builder
	sb.WriteString("Answer the following questions:")
	for _, q := range questions {
		sb.WriteString("\n- ")
		sb.WriteString(q)
	}
	return sb.String()
}
