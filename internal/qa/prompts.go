package qa

import (
	"fmt"
	"strings"
)

// Prompt templates sent to the generator. The context block and the
// question are embedded verbatim.
const (
	genericTemplate = `Based on the following context from documents, please answer the question clearly and concisely.

Context:
%s

Question: %s

Answer:`

	dateTemplate = `Based on the following context, answer the question about what happened on a specific date.
Pay special attention to dates and their associated activities. Look for exact date matches in the format like "6-Sept", "Sept 6", etc.

Context:
%s

Question: %s

Instructions:
- Look carefully for the specific date mentioned in the question
- If you find activities on that exact date, describe them in detail
- Include specific technical details, measurements, and procedures
- If the date is not found, clearly state that no information is available for that specific date

Answer:`

	documentTemplate = `Based on the following context from the document "%s", please answer the question clearly and concisely.

Context:
%s

Question: %s

Answer:`

	continuationTemplate = `Continue the following response naturally and complete it:

%s

Please continue and complete this response properly with a clear conclusion.`
)

// ComposeContext joins retrieved chunk texts into one context block,
// separated by blank lines.
func ComposeContext(contexts []string) string {
	return strings.Join(contexts, "\n\n")
}

// GenericPrompt builds the prompt for a general question.
func GenericPrompt(context, question string) string {
	return fmt.Sprintf(genericTemplate, context, question)
}

// DatePrompt builds the prompt for a date question. It instructs the
// generator to match the exact date and to state absence explicitly
// when the date is not in the context.
func DatePrompt(context, question string) string {
	return fmt.Sprintf(dateTemplate, context, question)
}

// DocumentPrompt builds the prompt for a question scoped to a single
// document.
func DocumentPrompt(document, context, question string) string {
	return fmt.Sprintf(documentTemplate, document, context, question)
}

// ContinuationPrompt asks the generator to finish a truncated answer.
func ContinuationPrompt(answer string) string {
	return fmt.Sprintf(continuationTemplate, answer)
}
