package session

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/alignecoderepos/filereg/internal/metrics"
	"github.com/alignecoderepos/filereg/internal/protocol"
	"github.com/alignecoderepos/filereg/internal/registry"
)

// handlePing handles the PING command
func (s *Session) handlePing(w io.Writer) bool {
	protocol.WritePong(w)
	return true
}

// handleUpload handles FILE_UPLOAD name size
func (s *Session) handleUpload(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 2 {
		return badRequest(w, "FILE_UPLOAD requires 2 arguments")
	}
	if !s.checkNames(w, cmd.Args[0]) {
		return false
	}
	size, err := cmd.Uint64(1, "size")
	if err != nil {
		return badRequest(w, err.Error())
	}

	return s.writeResult(w, s.registry.Upload(cmd.Args[0], size))
}

// handleUploadAt handles FILE_UPLOAD_AT ts name size [ttl]
func (s *Session) handleUploadAt(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) < 3 || len(cmd.Args) > 4 {
		return badRequest(w, "FILE_UPLOAD_AT requires 3 or 4 arguments")
	}
	ts, err := cmd.Int64(0, "timestamp")
	if err != nil {
		return badRequest(w, err.Error())
	}
	if !s.checkNames(w, cmd.Args[1]) {
		return false
	}
	size, err := cmd.Uint64(2, "size")
	if err != nil {
		return badRequest(w, err.Error())
	}

	ttl := registry.NoTTL
	if len(cmd.Args) == 4 {
		d, err := cmd.Uint64(3, "ttl")
		if err != nil {
			return badRequest(w, err.Error())
		}
		ttl = registry.ExpiresAfter(d)
	}

	return s.writeResult(w, s.registry.UploadAt(ts, cmd.Args[1], size, ttl))
}

// handleCopy handles FILE_COPY source dest
func (s *Session) handleCopy(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 2 {
		return badRequest(w, "FILE_COPY requires 2 arguments")
	}
	if !s.checkNames(w, cmd.Args...) {
		return false
	}

	return s.writeResult(w, s.registry.Copy(cmd.Args[0], cmd.Args[1]))
}

// handleCopyAt handles FILE_COPY_AT ts source dest
func (s *Session) handleCopyAt(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 3 {
		return badRequest(w, "FILE_COPY_AT requires 3 arguments")
	}
	ts, err := cmd.Int64(0, "timestamp")
	if err != nil {
		return badRequest(w, err.Error())
	}
	if !s.checkNames(w, cmd.Args[1:]...) {
		return false
	}

	return s.writeResult(w, s.registry.CopyAt(ts, cmd.Args[1], cmd.Args[2]))
}

// handleGet handles FILE_GET name
func (s *Session) handleGet(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 1 {
		return badRequest(w, "FILE_GET requires 1 argument")
	}

	size, err := s.registry.Get(cmd.Args[0])
	return s.writeSize(w, size, err)
}

// handleGetAt handles FILE_GET_AT ts name
func (s *Session) handleGetAt(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 2 {
		return badRequest(w, "FILE_GET_AT requires 2 arguments")
	}
	ts, err := cmd.Int64(0, "timestamp")
	if err != nil {
		return badRequest(w, err.Error())
	}

	size, err := s.registry.GetAt(ts, cmd.Args[1])
	return s.writeSize(w, size, err)
}

// handleSearch handles FILE_SEARCH [prefix [limit]]
func (s *Session) handleSearch(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) > 2 {
		return badRequest(w, "FILE_SEARCH takes at most 2 arguments")
	}
	prefix, limit, err := searchArgs(cmd, 0)
	if err != nil {
		return badRequest(w, err.Error())
	}

	writeRecords(w, s.registry.Search(prefix, limit))
	return true
}

// handleSearchAt handles FILE_SEARCH_AT ts [prefix [limit]]
func (s *Session) handleSearchAt(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) < 1 || len(cmd.Args) > 3 {
		return badRequest(w, "FILE_SEARCH_AT requires 1 to 3 arguments")
	}
	ts, err := cmd.Int64(0, "timestamp")
	if err != nil {
		return badRequest(w, err.Error())
	}
	prefix, limit, err := searchArgs(cmd, 1)
	if err != nil {
		return badRequest(w, err.Error())
	}

	writeRecords(w, s.registry.SearchAt(ts, prefix, limit))
	return true
}

// handleRollback handles ROLLBACK ts
func (s *Session) handleRollback(cmd *protocol.Command, w io.Writer) bool {
	if len(cmd.Args) != 1 {
		return badRequest(w, "ROLLBACK requires 1 argument")
	}
	ts, err := cmd.Int64(0, "timestamp")
	if err != nil {
		return badRequest(w, err.Error())
	}

	res := s.registry.Rollback(ts)
	protocol.WriteRollback(w, res.Kept, res.Discarded)
	return true
}

// handleStats handles the STATS command
func (s *Session) handleStats(w io.Writer) bool {
	fmt.Fprintf(w, "records=%d\r\n", s.registry.Len())
	if s.gatherer != nil {
		if err := metrics.Dump(s.gatherer, w); err != nil {
			protocol.WriteError(w, "INTERNAL", err.Error())
			return false
		}
	}
	fmt.Fprintf(w, "END\r\n")
	return true
}

// checkNames rejects names longer than max_name_bytes.
func (s *Session) checkNames(w io.Writer, names ...string) bool {
	for _, name := range names {
		if len(name) > s.config.MaxNameBytes {
			protocol.WriteError(w, "TOOLARGE", fmt.Sprintf("name exceeds %d bytes", s.config.MaxNameBytes))
			return false
		}
	}
	return true
}

// writeResult writes OK or the registry error.
func (s *Session) writeResult(w io.Writer, err error) bool {
	if err != nil {
		writeRegistryError(w, err)
		return false
	}
	protocol.WriteOK(w)
	return true
}

// writeSize writes SIZE or NOT_FOUND. A missing file is an answer, not a failure.
func (s *Session) writeSize(w io.Writer, size uint64, err error) bool {
	switch {
	case err == nil:
		protocol.WriteSize(w, size)
		return true
	case errors.Is(err, registry.ErrNotFound):
		protocol.WriteNotFound(w)
		return true
	default:
		protocol.WriteError(w, "INTERNAL", err.Error())
		return false
	}
}

func writeRegistryError(w io.Writer, err error) {
	switch {
	case errors.Is(err, registry.ErrAlreadyExists):
		protocol.WriteError(w, "EXISTS", err.Error())
	case errors.Is(err, registry.ErrNotFound):
		protocol.WriteError(w, "NOT_FOUND", err.Error())
	default:
		protocol.WriteError(w, "INTERNAL", err.Error())
	}
}

func writeRecords(w io.Writer, recs []registry.Record) {
	for _, rec := range recs {
		protocol.WriteFile(w, rec.Name, rec.Size, rec.CreatedAt.String(), rec.TTL.String())
	}
	protocol.WriteEnd(w, len(recs))
}

// searchArgs reads the optional prefix and limit starting at argument i.
func searchArgs(cmd *protocol.Command, i int) (string, int, error) {
	var prefix string
	if len(cmd.Args) > i {
		prefix = cmd.Args[i]
	}
	limit := 0
	if len(cmd.Args) > i+1 {
		n, err := cmd.Uint64(i+1, "limit")
		if err != nil {
			return "", 0, err
		}
		if n == 0 || n > math.MaxInt {
			return "", 0, fmt.Errorf("%w: limit must be positive", protocol.ErrInvalidArgs)
		}
		limit = int(n)
	}
	return prefix, limit, nil
}

func badRequest(w io.Writer, msg string) bool {
	protocol.WriteError(w, "BADREQ", msg)
	return false
}
