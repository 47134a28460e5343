package explain

import (
	"fmt"
	"strings"

	"github.com/lectern-ai/page-reader/internal/domain"
)

// expertSystemPrompt fixes the persona and the two hard constraints: answer
// in the same language as the extracted text, and skip greeting boilerplate.
const expertSystemPrompt = `You are a multilingual college professor, known for your great expertise in many subjects and your helpful teaching style. You will be given text extracted from a page of a PDF the user is currently reading. Your task is to answer the user's questions on the page clearly and thoroughly, with a pedagogical approach. Feel free to use simple examples if you have to explain complex concepts. It is imperative that you always answer the question in the same language as the extracted text. IMPORTANT: Do not use any introductory phrases like "Hello", "Here is an explanation of the page" or "Explanation of the page", directly answer the user's question.`

const expertHumanTemplate = `Here is the text extracted from the PDF page: %s

Here is the conversation so far:
%s

Here is the user's question: %s
`

// Inputs are the variables bound into the human turn of the prompt.
type Inputs struct {
	ParsedPage          string
	Prompt              string
	ConversationHistory string
}

// buildMessages renders the fixed prompt template with the given inputs.
func buildMessages(in Inputs) []domain.ChatMessage {
	human := fmt.Sprintf(expertHumanTemplate,
		in.ParsedPage,
		strings.TrimSpace(in.ConversationHistory),
		in.Prompt,
	)

	return []domain.ChatMessage{
		domain.TextMessage("system", expertSystemPrompt),
		domain.TextMessage("user", human),
	}
}
