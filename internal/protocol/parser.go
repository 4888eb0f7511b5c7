package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrLineTooLong    = errors.New("line too long")
)

// DefaultMaxLineBytes is used when NewParser is given a non-positive limit.
const DefaultMaxLineBytes = 64 * 1024

// EmptyToken stands for the empty string in an argument position.
const EmptyToken = `""`

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
	Line int
}

// Parser handles protocol parsing
type Parser struct {
	reader  *bufio.Reader
	line    int
	maxLine int
}

// NewParser creates a new protocol parser. Lines longer than maxLineBytes,
// not counting the line terminator, are rejected without being buffered.
func NewParser(r io.Reader, maxLineBytes int) *Parser {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Parser{
		reader:  bufio.NewReaderSize(r, maxLineBytes+2),
		maxLine: maxLineBytes,
	}
}

// Line returns the number of the last line read.
func (p *Parser) Line() int {
	return p.line
}

// ParseCommand parses the next command from the input. Blank lines and lines
// starting with '#' are skipped. Returns io.EOF once the input is exhausted
// and ErrLineTooLong for an oversized line, after which parsing can continue.
func (p *Parser) ParseCommand() (*Command, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		parts := strings.Fields(trimmed)
		args := make([]string, 0, len(parts)-1)
		for _, arg := range parts[1:] {
			if arg == EmptyToken {
				arg = ""
			}
			args = append(args, arg)
		}

		return &Command{
			Name: strings.ToUpper(parts[0]),
			Args: args,
			Line: p.line,
		}, nil
	}
}

// readLine returns the next line. An oversized line is drained up to its
// newline and reported as ErrLineTooLong.
func (p *Parser) readLine() (string, error) {
	tooLong := false
	for {
		chunk, err := p.reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			tooLong = true
			continue
		}
		if err != nil && (err != io.EOF || len(chunk) == 0) {
			if tooLong && err == io.EOF {
				p.line++
				return "", ErrLineTooLong
			}
			return "", err
		}
		p.line++
		line := strings.TrimSuffix(strings.TrimSuffix(string(chunk), "\n"), "\r")
		if tooLong || len(line) > p.maxLine {
			return "", ErrLineTooLong
		}
		return line, nil
	}
}

// Int64 parses argument i as a signed integer (timestamps).
func (cmd *Command) Int64(i int, what string) (int64, error) {
	v, err := strconv.ParseInt(cmd.Args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrInvalidArgs, what, cmd.Args[i])
	}
	return v, nil
}

// Uint64 parses argument i as a non-negative integer (sizes, TTLs).
func (cmd *Command) Uint64(i int, what string) (uint64, error) {
	v, err := strconv.ParseUint(cmd.Args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrInvalidArgs, what, cmd.Args[i])
	}
	return v, nil
}

// Response helpers

// WriteError writes an error response
func WriteError(w io.Writer, code, message string) error {
	_, err := fmt.Fprintf(w, "ERR %s %s\r\n", code, message)
	return err
}

// WriteOK writes an OK response
func WriteOK(w io.Writer) error {
	_, err := w.Write([]byte("OK\r\n"))
	return err
}

// WritePong writes a PONG response
func WritePong(w io.Writer) error {
	_, err := w.Write([]byte("PONG\r\n"))
	return err
}

// WriteNotFound writes a NOT_FOUND response
func WriteNotFound(w io.Writer) error {
	_, err := w.Write([]byte("NOT_FOUND\r\n"))
	return err
}

// WriteSize writes a SIZE response
func WriteSize(w io.Writer, size uint64) error {
	_, err := fmt.Fprintf(w, "SIZE %d\r\n", size)
	return err
}

// WriteFile writes one search result line. created and ttl are "-" when unset.
func WriteFile(w io.Writer, name string, size uint64, created, ttl string) error {
	_, err := fmt.Fprintf(w, "FILE %s %d %s %s\r\n", name, size, created, ttl)
	return err
}

// WriteEnd terminates a multi-line response
func WriteEnd(w io.Writer, count int) error {
	_, err := fmt.Fprintf(w, "END %d\r\n", count)
	return err
}

// WriteRollback writes a ROLLBACK response
func WriteRollback(w io.Writer, kept, discarded int) error {
	_, err := fmt.Fprintf(w, "ROLLBACK %d %d\r\n", kept, discarded)
	return err
}
