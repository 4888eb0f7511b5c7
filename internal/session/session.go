package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alignecoderepos/filereg/internal/config"
	"github.com/alignecoderepos/filereg/internal/logging"
	"github.com/alignecoderepos/filereg/internal/protocol"
	"github.com/alignecoderepos/filereg/internal/registry"
)

// ErrCommandFailed is returned by Run when stop_on_error is set and a command fails.
var ErrCommandFailed = errors.New("command failed")

// Session executes a stream of protocol commands against one registry
type Session struct {
	config   *config.Config
	registry *registry.Registry
	gatherer prometheus.Gatherer
}

// Summary counts what a Run executed
type Summary struct {
	Commands int
	Failed   int
}

// New creates a session. gatherer may be nil, in which case STATS reports
// only the record count.
func New(reg *registry.Registry, cfg *config.Config, gatherer prometheus.Gatherer) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Session{
		config:   cfg,
		registry: reg,
		gatherer: gatherer,
	}
}

// parsed is one result of the reader goroutine.
type parsed struct {
	cmd  *protocol.Command
	line int
	err  error
}

// Run reads commands from r until EOF or ctx is done, writing one response
// per command to w. Cancellation is honoured even while a read is blocked;
// the blocked read itself ends only when r is closed or yields data.
func (s *Session) Run(ctx context.Context, r io.Reader, w io.Writer) (Summary, error) {
	writer := bufio.NewWriter(w)
	defer writer.Flush()

	done := make(chan struct{})
	defer close(done)
	commands := s.readCommands(r, done)

	var sum Summary
	for {
		// Checked first so a cancelled context never runs a pending command
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		var next parsed
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case next = <-commands:
		}

		if next.err != nil {
			if next.err == io.EOF {
				return sum, nil
			}
			if !errors.Is(next.err, protocol.ErrLineTooLong) {
				return sum, fmt.Errorf("read command: %w", next.err)
			}
			protocol.WriteError(writer, "TOOLARGE", fmt.Sprintf("line exceeds %d bytes", s.config.MaxLineBytes))
			if err := writer.Flush(); err != nil {
				return sum, fmt.Errorf("write response: %w", err)
			}
			sum.Commands++
			sum.Failed++
			if s.config.StopOnError {
				return sum, fmt.Errorf("%w: line %d: %v", ErrCommandFailed, next.line, next.err)
			}
			continue
		}
		cmd := next.cmd

		start := time.Now()
		ok := s.processCommand(cmd, writer)
		if err := writer.Flush(); err != nil {
			return sum, fmt.Errorf("write response: %w", err)
		}

		sum.Commands++
		if !ok {
			sum.Failed++
		}

		// Log slow commands
		duration := time.Since(start)
		if duration > s.config.SlowlogThreshold() {
			logging.L().Warn("slow command", "cmd", cmd.Name, "args", cmd.Args, "duration", duration)
		}

		if !ok && s.config.StopOnError {
			return sum, fmt.Errorf("%w: line %d: %s", ErrCommandFailed, cmd.Line, cmd.Name)
		}
	}
}

// readCommands parses r on its own goroutine so Run can select on the
// context. It stops after a fatal read error or once done is closed.
func (s *Session) readCommands(r io.Reader, done <-chan struct{}) <-chan parsed {
	out := make(chan parsed)
	go func() {
		parser := protocol.NewParser(r, s.config.MaxLineBytes)
		for {
			cmd, err := parser.ParseCommand()
			select {
			case out <- parsed{cmd: cmd, line: parser.Line(), err: err}:
			case <-done:
				return
			}
			if err != nil && !errors.Is(err, protocol.ErrLineTooLong) {
				return
			}
		}
	}()
	return out
}

// processCommand dispatches a single command. It reports false when the
// command was rejected.
func (s *Session) processCommand(cmd *protocol.Command, w io.Writer) bool {
	switch cmd.Name {
	case "PING":
		return s.handlePing(w)
	case "FILE_UPLOAD":
		return s.handleUpload(cmd, w)
	case "FILE_UPLOAD_AT":
		return s.handleUploadAt(cmd, w)
	case "FILE_COPY":
		return s.handleCopy(cmd, w)
	case "FILE_COPY_AT":
		return s.handleCopyAt(cmd, w)
	case "FILE_GET":
		return s.handleGet(cmd, w)
	case "FILE_GET_AT":
		return s.handleGetAt(cmd, w)
	case "FILE_SEARCH":
		return s.handleSearch(cmd, w)
	case "FILE_SEARCH_AT":
		return s.handleSearchAt(cmd, w)
	case "ROLLBACK":
		return s.handleRollback(cmd, w)
	case "STATS":
		return s.handleStats(w)
	default:
		protocol.WriteError(w, "BADREQ", fmt.Sprintf("unknown command: %s", cmd.Name))
		return false
	}
}
