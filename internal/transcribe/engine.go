package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// blankAudioMarker is what whisper prints for stretches without speech.
const blankAudioMarker = "[BLANK_AUDIO]"

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Engine runs the whisper-cli binary against local audio files.
type Engine struct {
	bin      string
	modelDir string
	model    string
	runner   commandRunner
}

// NewEngine creates an engine for the given binary and ggml model name.
func NewEngine(bin, modelDir, model string) *Engine {
	return &Engine{bin: bin, modelDir: modelDir, model: model}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner commandRunner) {
	e.runner = runner
}

// Model returns the configured model name.
func (e *Engine) Model() string {
	return e.model
}

// ModelPath returns the ggml model file whisper-cli will load.
func (e *Engine) ModelPath() string {
	return filepath.Join(e.modelDir, "ggml-"+e.model+".bin")
}

// Transcribe runs whisper-cli over the audio file and returns the cleaned
// transcript. With timestamps disabled whisper prints the transcript on
// stdout, one segment per line.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	out, err := e.run(ctx, e.bin, "-m", e.ModelPath(), "-f", audioPath, "-nt")
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	return CleanTranscript(string(out)), nil
}

// run executes a command, using the custom runner if set.
func (e *Engine) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if e.runner != nil {
		return e.runner(ctx, name, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// CleanTranscript strips whisper's blank-audio markers and surrounding
// whitespace. A silent recording cleans to the empty string.
func CleanTranscript(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, blankAudioMarker, ""))
}
