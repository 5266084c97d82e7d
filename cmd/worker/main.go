// Command worker hosts an executor over stdio. Each line on stdin is a JSON
// request; each response is written to stdout as one line of JSON. At EOF the
// worker waits for outstanding requests and exits.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/config"
	"github.com/makeasinger/compute-worker/internal/executor"
	"github.com/makeasinger/compute-worker/internal/model"
)

const maxLineSize = 16 * 1024 * 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// stdout carries the protocol, so logs go to stderr
	log := logrus.NewEntry(config.NewLogger(cfg.Server.LogLevel, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, cfg.Executor.InboxSize, log); err != nil {
		log.WithError(err).Fatal("worker failed")
	}
}

// lineWriter encodes responses as newline-delimited JSON
type lineWriter struct {
	mu  sync.Mutex
	out *bufio.Writer
	enc *json.Encoder
	log *logrus.Entry
}

func newLineWriter(w io.Writer, log *logrus.Entry) *lineWriter {
	out := bufio.NewWriter(w)
	return &lineWriter{out: out, enc: json.NewEncoder(out), log: log}
}

func (lw *lineWriter) Emit(resp model.Response) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.enc.Encode(resp); err != nil {
		lw.log.WithError(err).WithField("id", resp.ID).Error("failed to write response")
		return
	}
	if err := lw.out.Flush(); err != nil {
		lw.log.WithError(err).Error("failed to flush output")
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, inboxSize int, log *logrus.Entry) error {
	sink := newLineWriter(out, log)
	exec, err := executor.New(sink,
		executor.WithLogger(log.WithField("component", "executor")),
		executor.WithInboxSize(inboxSize),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- exec.Run(ctx) }()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req model.Request
		if err := json.Unmarshal(line, &req); err != nil {
			sink.Emit(model.Response{
				ID:        model.FallbackID,
				Status:    model.StatusError,
				Error:     "malformed request: " + err.Error(),
				ErrorType: string(executor.KindTypeInvalid),
				Timestamp: model.Now(),
			})
			continue
		}
		if err := exec.Submit(req); err != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("failed to read input")
	}

	exec.Wait()
	cancel()
	return <-stopped
}
