// Package pipeline drives one voice recording from raw bytes to grouped
// numeric text: normalize, recognize, format. Both front-ends share this one
// implementation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovozlabs/ovozd/internal/digits"
	"github.com/ovozlabs/ovozd/internal/media"
	"github.com/ovozlabs/ovozd/internal/recognizer"
)

// Normalizer resamples an input audio file into 16 kHz mono WAV.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Pipeline orchestrates normalization, recognition and digit grouping for a
// single recording. Invocations are independent and safe to run concurrently;
// each gets its own transient file namespace.
type Pipeline struct {
	normalizer Normalizer
	recognizer recognizer.Recognizer
	scratch    string
	log        *slog.Logger
	tracer     trace.Tracer
	attempts   metric.Int64Counter
}

// New wires a pipeline. scratch is the root directory for per-invocation
// workspaces; empty means the system temp directory.
func New(n Normalizer, r recognizer.Recognizer, scratch string, log *slog.Logger) *Pipeline {
	p := &Pipeline{
		normalizer: n,
		recognizer: r,
		scratch:    scratch,
		log:        log,
		tracer:     otel.Tracer("ovozd/pipeline"),
	}
	meter := otel.Meter("ovozd/pipeline")
	p.attempts, _ = meter.Int64Counter("transcriptions.total",
		metric.WithDescription("Transcript pipeline invocations by outcome"))
	return p
}

// Transcribe runs the full intake-to-transcript pipeline on one recording.
// ext is the file extension hint for the raw audio (".ogg", ".mp3", ".wav").
// Transient files never outlive the call, whatever the outcome.
func (p *Pipeline) Transcribe(ctx context.Context, audio []byte, ext string, lang recognizer.Language) (result recognizer.Result) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transcribe",
		trace.WithAttributes(
			attribute.String("language", string(lang)),
			attribute.Int("audio.bytes", len(audio)),
		))

	defer func() {
		if r := recover(); r != nil {
			result = recognizer.InternalError(fmt.Sprintf("pipeline fault: %v", r))
			p.log.Error("pipeline panic recovered", slog.Any("panic", r))
		}
		span.SetAttributes(attribute.String("outcome", result.Status.String()))
		span.End()
		p.attempts.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", result.Status.String())))
	}()

	ws, err := media.NewWorkspace(p.scratch)
	if err != nil {
		return recognizer.InternalError(fmt.Sprintf("workspace: %v", err))
	}
	// Cleanup runs on every exit path, including the panic path above, and
	// must not mask the invocation's own outcome.
	defer func() {
		if err := ws.Release(); err != nil {
			p.log.Error("workspace release failed",
				slog.String("dir", ws.Dir()), slog.String("error", err.Error()))
		}
	}()

	input, err := ws.Acquire("input"+cleanExt(ext), audio)
	if err != nil {
		return recognizer.InternalError(fmt.Sprintf("stage input: %v", err))
	}

	normalized := ws.Path("audio.wav")
	if err := p.normalizer.Normalize(ctx, input, normalized); err != nil {
		p.log.Error("normalization failed",
			slog.String("language", string(lang)), slog.String("error", err.Error()))
		return recognizer.InternalError(fmt.Sprintf("normalize audio: %v", err))
	}

	result = p.recognizer.Recognize(ctx, normalized, lang)
	switch result.Status {
	case recognizer.StatusOK:
		result.Text = digits.Group(result.Text)
		p.log.Info("transcription succeeded",
			slog.String("language", string(lang)), slog.Int("digits", len(result.Text)))
	default:
		p.log.Warn("transcription failed",
			slog.String("language", string(lang)),
			slog.String("outcome", result.Status.String()),
			slog.String("detail", result.Detail))
	}
	return result
}

// cleanExt keeps the extension hint from smuggling path components into the
// workspace.
func cleanExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".bin"
	}
	if strings.ContainsAny(ext, "/\\") {
		return ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
