package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/agileassist/server/domain/repositories"
)

var errEmptyReply = errors.New("model returned an empty reply")

type answerPayload struct {
	Answer       string `json:"answer"`
	LanguageCode string `json:"languageCode"`
}

// parseAnswer decodes a model reply. Replies that are not the requested JSON
// object are taken verbatim as the answer text.
func parseAnswer(raw string, fallbackLanguage string) (repositories.Answer, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return repositories.Answer{}, errEmptyReply
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil || strings.TrimSpace(payload.Answer) == "" {
		return repositories.Answer{
			Text:         text,
			LanguageCode: CanonicalLanguage(fallbackLanguage),
		}, nil
	}

	lang := CanonicalLanguage(payload.LanguageCode)
	if lang == "" {
		lang = CanonicalLanguage(fallbackLanguage)
	}

	return repositories.Answer{
		Text:         strings.TrimSpace(payload.Answer),
		LanguageCode: lang,
	}, nil
}

// CanonicalLanguage returns the canonical BCP-47 form of tag, or "" if tag is
// not a well-formed language tag.
func CanonicalLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	return parsed.String()
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the info string, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
