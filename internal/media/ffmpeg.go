package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// ErrToolUnavailable reports that the external transcoder binary is missing
// or misconfigured. Raised by Probe at startup, never per request.
var ErrToolUnavailable = errors.New("transcoder binary unavailable")

const (
	// TargetSampleRate and TargetChannels describe the waveform every
	// recognition backend receives: 16 kHz mono PCM.
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Normalizer resamples arbitrary input audio to 16 kHz mono WAV by running
// an external ffmpeg-compatible command.
type Normalizer struct {
	cmd     []string
	timeout time.Duration
}

// NewNormalizer parses command (shell-style, usually just "ffmpeg") and
// returns a Normalizer whose per-call invocations run under timeout.
func NewNormalizer(command string, timeout time.Duration) (*Normalizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse transcoder command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcoder command is empty")
	}
	return &Normalizer{cmd: args, timeout: timeout}, nil
}

// Probe verifies the transcoder binary can be executed at all. A failure here
// is a deployment problem, distinct from a per-request decode failure.
func (n *Normalizer) Probe(ctx context.Context) error {
	args := append([]string{}, n.cmd[1:]...)
	cmd := exec.CommandContext(ctx, n.cmd[0], append(args, "-version")...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	return nil
}

// Normalize transcodes inputPath into 16 kHz mono PCM WAV at outputPath,
// overwriting any existing file there. A non-zero exit means the input was
// not decodable audio; the returned error carries the tool's stderr.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	args := append([]string{}, n.cmd[1:]...)
	args = append(args,
		"-i", inputPath,
		"-ar", fmt.Sprint(TargetSampleRate),
		"-ac", fmt.Sprint(TargetChannels),
		outputPath,
		"-y",
	)

	cmd := exec.CommandContext(ctx, n.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("transcode failed: %w: %s", err, stderr.String())
	}

	return verifyWaveform(outputPath)
}

// verifyWaveform rejects transcoder output that is not the waveform the
// recognition backend expects.
func verifyWaveform(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open normalized audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("decode normalized audio: %w", err)
	}
	if dec.SampleRate != TargetSampleRate || dec.NumChans != TargetChannels {
		return fmt.Errorf("normalized audio is %d Hz / %d ch, want %d Hz mono",
			dec.SampleRate, dec.NumChans, TargetSampleRate)
	}
	return nil
}

// LoadPCM reads a normalized WAV file and returns its samples as raw
// little-endian 16-bit PCM, the payload shape the recognition backend takes.
func LoadPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read waveform: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, nil
}
