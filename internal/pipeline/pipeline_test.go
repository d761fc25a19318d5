package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ovozlabs/ovozd/internal/recognizer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeNormalizer struct {
	err  error
	mu   sync.Mutex
	dirs []string
}

func (f *fakeNormalizer) Normalize(_ context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.dirs = append(f.dirs, filepath.Dir(inputPath))
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("RIFF"), 0o600)
}

type fakeRecognizer struct {
	result recognizer.Result
	panics bool
	calls  atomic.Int64
}

func (f *fakeRecognizer) Recognize(_ context.Context, wavPath string, _ recognizer.Language) recognizer.Result {
	f.calls.Add(1)
	if f.panics {
		panic("recognizer blew up")
	}
	if _, err := os.Stat(wavPath); err != nil {
		return recognizer.InternalError("waveform missing: " + err.Error())
	}
	return f.result
}

// scratchEmpty asserts no transient workspace survived the invocation.
func scratchEmpty(t *testing.T, scratch string) {
	t.Helper()
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("transient files leaked: %v", entries)
	}
}

func TestTranscribeSuccessGroupsDigits(t *testing.T) {
	scratch := t.TempDir()
	rec := &fakeRecognizer{result: recognizer.OK("9860123456789012")}
	p := New(&fakeNormalizer{}, rec, scratch, testLogger())

	res := p.Transcribe(context.Background(), []byte("opus"), ".ogg", recognizer.LanguageUzbek)
	if res.Status != recognizer.StatusOK {
		t.Fatalf("expected ok, got %s (%s)", res.Status, res.Detail)
	}
	if res.Text != "9860 1234 5678 9012" {
		t.Fatalf("expected grouped digits, got %q", res.Text)
	}
	scratchEmpty(t, scratch)
}

func TestTranscribeNormalizationFailure(t *testing.T) {
	scratch := t.TempDir()
	rec := &fakeRecognizer{result: recognizer.OK("123")}
	p := New(&fakeNormalizer{err: errors.New("exit status 1: not audio")}, rec, scratch, testLogger())

	res := p.Transcribe(context.Background(), []byte("png bytes"), ".ogg", recognizer.LanguageRussian)
	if res.Status != recognizer.StatusInternalError {
		t.Fatalf("expected internal error, got %s", res.Status)
	}
	if rec.calls.Load() != 0 {
		t.Fatal("recognizer must not run after failed normalization")
	}
	scratchEmpty(t, scratch)
}

func TestTranscribePropagatesRecognitionOutcomes(t *testing.T) {
	for _, result := range []recognizer.Result{
		recognizer.Unrecognized(),
		recognizer.BackendUnavailable("503"),
		recognizer.InternalError("boom"),
	} {
		scratch := t.TempDir()
		p := New(&fakeNormalizer{}, &fakeRecognizer{result: result}, scratch, testLogger())
		res := p.Transcribe(context.Background(), []byte("a"), ".wav", recognizer.LanguageUzbek)
		if res.Status != result.Status {
			t.Fatalf("expected %s, got %s", result.Status, res.Status)
		}
		scratchEmpty(t, scratch)
	}
}

func TestTranscribeCleansUpAfterPanic(t *testing.T) {
	scratch := t.TempDir()
	p := New(&fakeNormalizer{}, &fakeRecognizer{panics: true}, scratch, testLogger())

	res := p.Transcribe(context.Background(), []byte("a"), ".mp3", recognizer.LanguageUzbek)
	if res.Status != recognizer.StatusInternalError {
		t.Fatalf("expected internal error after panic, got %s", res.Status)
	}
	scratchEmpty(t, scratch)
}

func TestTranscribeConcurrentInvocationsAreIsolated(t *testing.T) {
	scratch := t.TempDir()
	norm := &fakeNormalizer{}
	rec := &fakeRecognizer{result: recognizer.OK("1234")}
	p := New(norm, rec, scratch, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := p.Transcribe(context.Background(), []byte("audio"), ".ogg", recognizer.LanguageUzbek)
			if res.Status != recognizer.StatusOK {
				t.Errorf("unexpected status %s", res.Status)
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, dir := range norm.dirs {
		if seen[dir] {
			t.Fatalf("workspace %s reused across invocations", dir)
		}
		seen[dir] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct workspaces, got %d", len(seen))
	}
	if got := rec.calls.Load(); got != 8 {
		t.Fatalf("expected 8 recognition attempts, got %d", got)
	}
	scratchEmpty(t, scratch)
}

func TestCleanExt(t *testing.T) {
	cases := map[string]string{
		".ogg":       ".ogg",
		"mp3":        ".mp3",
		"":           ".bin",
		"../../etc":  ".bin",
		`..\trick`:   ".bin",
		".wav":       ".wav",
	}
	for in, want := range cases {
		if got := cleanExt(in); got != want {
			t.Fatalf("cleanExt(%q) = %q, want %q", in, got, want)
		}
	}
}
