// Package recognizer converts normalized waveforms into text through an
// external speech recognition backend.
package recognizer

import (
	"context"
	"fmt"
)

// Language selects the recognition backend locale. Closed set.
type Language string

const (
	LanguageUzbek   Language = "uzbek"
	LanguageRussian Language = "russian"
)

// Locale returns the backend locale code for the language.
func (l Language) Locale() string {
	switch l {
	case LanguageRussian:
		return "ru_RU"
	default:
		return "uz_UZ"
	}
}

// ParseLocale maps a wire locale code back to a Language.
func ParseLocale(code string) (Language, error) {
	switch code {
	case "uz_UZ":
		return LanguageUzbek, nil
	case "ru_RU":
		return LanguageRussian, nil
	}
	return "", fmt.Errorf("unsupported language %q", code)
}

// ParseName maps a language name (chat callback payload) to a Language.
func ParseName(name string) (Language, error) {
	switch Language(name) {
	case LanguageUzbek:
		return LanguageUzbek, nil
	case LanguageRussian:
		return LanguageRussian, nil
	}
	return "", fmt.Errorf("unsupported language %q", name)
}

// Status classifies a single recognition attempt.
type Status int

const (
	// StatusOK means the backend produced text.
	StatusOK Status = iota
	// StatusUnrecognized means speech was present but not decodable.
	StatusUnrecognized
	// StatusBackendUnavailable means the backend errored or was unreachable.
	StatusBackendUnavailable
	// StatusInternalError covers everything else.
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnrecognized:
		return "unrecognized"
	case StatusBackendUnavailable:
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}

// Result is the outcome of one recognition attempt. Text is set only when
// Status is StatusOK; Detail carries a human-readable failure description.
type Result struct {
	Status Status
	Text   string
	Detail string
}

// OK builds a success result.
func OK(text string) Result {
	return Result{Status: StatusOK, Text: text}
}

// Unrecognized builds a not-understood result.
func Unrecognized() Result {
	return Result{Status: StatusUnrecognized}
}

// BackendUnavailable builds a backend failure result.
func BackendUnavailable(detail string) Result {
	return Result{Status: StatusBackendUnavailable, Detail: detail}
}

// InternalError builds an unexpected failure result.
func InternalError(detail string) Result {
	return Result{Status: StatusInternalError, Detail: detail}
}

// Recognizer submits a normalized waveform file to a speech backend. One
// attempt per call; retries are the caller's decision.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string, lang Language) Result
}
