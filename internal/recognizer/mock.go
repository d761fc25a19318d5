package recognizer

import "context"

type mockRecognizer struct {
	text string
}

// NewMockRecognizer returns a Recognizer that always succeeds with text,
// useful for running the service without a speech backend.
func NewMockRecognizer(text string) Recognizer {
	return &mockRecognizer{text: text}
}

func (m *mockRecognizer) Recognize(_ context.Context, _ string, _ Language) Result {
	return OK(m.text)
}
