package repositories

import "context"

// AnswerMode selects the answering flow
type AnswerMode string

const (
	// AnswerModeQuestion answers in the language the caller asks for
	AnswerModeQuestion AnswerMode = "answerQuestion"
	// AnswerModeMultilingual detects the language from the question itself
	AnswerModeMultilingual AnswerMode = "multilingualAssistance"
)

// AnswerService abstracts any chat/LLM provider able to answer a classroom question
type AnswerService interface {
	// Answer returns the reply text and, when detected, its language
	Answer(ctx context.Context, req AnswerRequest) (Answer, error)
}

// AnswerRequest is the input of a single question
type AnswerRequest struct {
	Question     string     `json:"question"`
	LanguageCode string     `json:"languageCode,omitempty"`
	Mode         AnswerMode `json:"mode,omitempty"`
}

// Answer is the reply of the model
type Answer struct {
	Text         string `json:"answer"`
	LanguageCode string `json:"languageCode,omitempty"`
}
