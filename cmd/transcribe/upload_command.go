package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/client"
	"github.com/MarkDM/whisper-aws-serverless/internal/reconcile"
)

func newUploadCommand(serverURL *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload audio files and wait for their transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := resolveFiles(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return runUpload(ctx, cmd.OutOrStdout(), client.NewClient(*serverURL), files)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Give up waiting for transcripts after this long (0 waits forever)")
	return cmd
}

func resolveFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{}, len(args))
	files := make([]string, 0, len(args))
	for _, arg := range args {
		absPath, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("file does not exist: %s", absPath)
			}
			return nil, fmt.Errorf("inspect file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", absPath)
		}

		name := filepath.Base(absPath)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate file name %q: transcripts are tracked by name", name)
		}
		seen[name] = struct{}{}
		files = append(files, absPath)
	}
	return files, nil
}

// printer serializes CLI output: the upload loop and the event stream
// goroutine both report progress.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func runUpload(ctx context.Context, out io.Writer, c *client.Client, files []string) error {
	p := &printer{out: out}

	tracker := reconcile.NewTracker()
	for _, f := range files {
		if err := tracker.Add(filepath.Base(f)); err != nil {
			return fmt.Errorf("cannot track %s: %w", f, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var finish sync.Once
	allDone := make(chan struct{})
	markDone := func() {
		if tracker.AllTerminal() {
			finish.Do(func() { close(allDone) })
		}
	}

	var connectOnce sync.Once
	connected := make(chan struct{})

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- c.Listen(ctx, func(event string, data []byte) {
			switch event {
			case broadcast.EventConnected:
				connectOnce.Do(func() { close(connected) })
			case broadcast.EventMessage:
				if rec, ok := tracker.Apply(data); ok {
					switch rec.Status {
					case reconcile.StatusProcessing:
						p.printf("processing: %s\n", rec.FileName)
					case reconcile.StatusCompleted:
						p.printf("completed: %s\n", rec.FileName)
					}
					markDone()
				}
			case broadcast.EventShutdown:
				p.printf("server is shutting down\n")
			}
		})
	}()

	// Subscribe before the first upload so no status event can slip past.
	select {
	case <-connected:
	case err := <-streamErr:
		if err == nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to subscribe to status events: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, f := range files {
		name := filepath.Base(f)
		_ = tracker.UploadStarted(name)
		receipt, err := c.Upload(ctx, f, func(percent int) {
			_ = tracker.SetProgress(name, percent)
		})
		if err != nil {
			_ = tracker.UploadFailed(name, err)
			p.printf("upload failed: %s: %v\n", name, err)
			markDone()
			continue
		}
		_ = tracker.UploadSucceeded(name, receipt.JobID, receipt.Key)
		p.printf("uploaded: %s -> %s\n", name, receipt.Key)
	}

	select {
	case <-allDone:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.printf("gave up waiting for transcripts\n")
		}
	case err := <-streamErr:
		if err != nil {
			p.printf("status stream lost: %v\n", err)
		}
	}

	return report(p, tracker)
}

func report(p *printer, tracker *reconcile.Tracker) error {
	records := tracker.Records()
	unfinished := 0
	for _, r := range records {
		switch r.Status {
		case reconcile.StatusCompleted:
			p.printf("\n==> %s\n%s\n", r.FileName, r.Transcript)
		case reconcile.StatusError:
			unfinished++
			p.printf("\n==> %s\nfailed: %s\n", r.FileName, r.Err)
		default:
			unfinished++
			p.printf("\n==> %s\nstill %s when the wait ended\n", r.FileName, r.Status)
		}
	}
	if unfinished > 0 {
		return fmt.Errorf("%d of %d files did not complete", unfinished, len(records))
	}
	return nil
}
