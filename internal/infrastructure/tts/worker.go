// Package tts invokes the external subprocess-based speech synthesizer
// (§6.4). Grounded on five82-spindle's makemkv.Client/Executor shape: an
// injectable command executor for testability, a context-scoped timeout that
// guarantees subprocess termination, and tolerant stdout decoding.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/ports"
)

// Timeout bounds a single subprocess invocation; exceeding it kills the
// process (§4.7: "5-minute wall-clock timeout").
const Timeout = 5 * time.Minute

// Executor abstracts process execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Option configures a Worker.
type Option func(*Worker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(w *Worker) {
		if exec != nil {
			w.exec = exec
		}
	}
}

// Worker wraps the TTS CLI subprocess protocol.
type Worker struct {
	binary string
	exec   Executor
}

var _ ports.TTSWorker = (*Worker)(nil)

// New constructs a worker invoking the given executable.
func New(binary string, opts ...Option) *Worker {
	w := &Worker{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Synthesize invokes the generation form of the CLI protocol: `--text --voice
// --preset --output --output-dir [--custom-voice]`.
func (w *Worker) Synthesize(ctx context.Context, req ports.TTSRequest) (ports.TTSResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{
		"--text", req.Text,
		"--voice", req.Voice,
		"--preset", req.Preset,
		"--output", req.OutputFile,
		"--output-dir", req.OutputDir,
	}
	if req.CustomVoicePath != "" {
		args = append(args, "--custom-voice", req.CustomVoicePath)
	}

	stdout, stderr, err := w.exec.Run(runCtx, w.binary, args)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ports.TTSResult{}, apperr.Timeout("tts worker exceeded the 5-minute timeout")
		}
		return ports.TTSResult{}, apperr.Upstream(err, "tts worker failed: %s", strings.TrimSpace(string(stderr)))
	}

	return parseResult(stdout)
}

// CreateVoice invokes the voice-creation form of the CLI protocol:
// `--create-voice --description --audio-files`.
func (w *Worker) CreateVoice(ctx context.Context, name, description string, audioFiles []string) (ports.TTSResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{
		"--create-voice", name,
		"--description", description,
		"--audio-files", strings.Join(audioFiles, ","),
	}
	stdout, stderr, err := w.exec.Run(runCtx, w.binary, args)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ports.TTSResult{}, apperr.Timeout("tts worker exceeded the 5-minute timeout")
		}
		return ports.TTSResult{}, apperr.Upstream(err, "tts worker failed: %s", strings.TrimSpace(string(stderr)))
	}
	return parseResult(stdout)
}

// ListVoices invokes the enumeration form of the CLI protocol: `--list-voices`.
func (w *Worker) ListVoices(ctx context.Context) ([]string, error) {
	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	stdout, stderr, err := w.exec.Run(runCtx, w.binary, []string{"--list-voices"})
	if err != nil {
		return nil, apperr.Upstream(err, "tts worker failed: %s", strings.TrimSpace(string(stderr)))
	}

	var voices []string
	if err := json.Unmarshal(stdout, &voices); err != nil {
		return nil, fmt.Errorf("decode voice list: %w", err)
	}
	return voices, nil
}

// parseResult decodes the worker's JSON stdout into a TTSResult, tolerating
// arbitrary shape beyond the fields the engine cares about (§6.4).
func parseResult(stdout []byte) (ports.TTSResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return ports.TTSResult{}, fmt.Errorf("decode tts worker output: %w", err)
	}

	result := ports.TTSResult{Raw: raw}
	if v, ok := raw["success"].(bool); ok {
		result.Success = v
	}
	if v, ok := raw["output_file"].(string); ok {
		result.OutputFile = v
	}
	if v, ok := raw["duration"].(float64); ok {
		result.Duration = v
	}
	return result, nil
}
