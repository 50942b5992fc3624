package voice

import (
	"errors"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
)

// NoticeKind classifies user-visible failures
type NoticeKind string

const (
	NoticeCapabilityUnavailable NoticeKind = "capability_unavailable"
	NoticeConfigurationError    NoticeKind = "configuration_error"
	NoticeAnswerServiceError    NoticeKind = "answer_service_error"
	NoticeSpeechQuotaExceeded   NoticeKind = "speech_quota_exceeded"
	NoticeRecognitionError      NoticeKind = "recognition_error"
)

// Notice is a transient toast, except configuration errors which persist
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Persistent  bool       `json:"persistent"`
}

func capabilityNotice() Notice {
	return Notice{
		Kind:        NoticeCapabilityUnavailable,
		Title:       "Browser Not Supported",
		Description: "Speech recognition is not supported in your browser.",
	}
}

func configurationNotice() Notice {
	return Notice{
		Kind:        NoticeConfigurationError,
		Title:       "Error: Backend not configured",
		Description: "Please configure the GEMINI_API_KEY environment variable.",
		Persistent:  true,
	}
}

func answerServiceNotice(description string) Notice {
	if description == "" {
		description = "An unknown error occurred."
	}
	return Notice{
		Kind:        NoticeAnswerServiceError,
		Title:       "An Error Occurred",
		Description: description,
	}
}

func speechQuotaNotice() Notice {
	return Notice{
		Kind:        NoticeSpeechQuotaExceeded,
		Title:       "Audio Generation Limit Reached",
		Description: "Using browser voice as a fallback.",
	}
}

func recognitionNotice(description string) Notice {
	return Notice{
		Kind:        NoticeRecognitionError,
		Title:       "Speech Recognition Error",
		Description: description,
	}
}

func recognitionKindNotice(kind capture.ErrorKind) Notice {
	return recognitionNotice(string(kind))
}

// errorMessage prefers the upstream message of a ServiceError
func errorMessage(err error) string {
	var serviceErr *repositories.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}
	return err.Error()
}
