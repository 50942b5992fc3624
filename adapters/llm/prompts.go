package llm

import (
	"fmt"

	"github.com/agileassist/server/domain/repositories"
)

const assistantPersona = "You are AgileAssist, a friendly and helpful assistant for college teachers."

const multilingualPrompt = assistantPersona + `

Your primary task is to answer the user's question.

IMPORTANT: Analyze the user's question to determine the desired language for the response.
- If the user explicitly asks for an answer in a specific language (e.g., "in Tamil", "in Hindi"), you MUST provide the answer in that language.
- If no specific language is requested, answer in the same language the question was asked.

Reply with a JSON object: {"answer": "<the answer>", "languageCode": "<BCP-47 code of the answer language>"}.`

const questionPromptFormat = assistantPersona + `

Answer the user's question clearly and concisely, in the language identified by the BCP-47 code %q.

Reply with a JSON object: {"answer": "<the answer>", "languageCode": %q}.`

// systemPrompt returns the instruction for the requested answering flow
func systemPrompt(req repositories.AnswerRequest) string {
	if req.Mode == repositories.AnswerModeQuestion && req.LanguageCode != "" {
		return fmt.Sprintf(questionPromptFormat, req.LanguageCode, req.LanguageCode)
	}
	return multilingualPrompt
}

func userPrompt(question string) string {
	return "User's Question: " + question + "\n\nAnswer:"
}
