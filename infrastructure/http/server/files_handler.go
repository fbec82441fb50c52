package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"filedrop/auth"
	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type fileStatusResponse struct {
	Filename         string        `json:"filename"`
	Status           string        `json:"status"`
	BytesReceived    int64         `json:"bytes_received"`
	TotalBytes       int64         `json:"total_bytes"`
	NextExpectedByte int64         `json:"next_expected_byte"`
	MissingRanges    []chunk.Range `json:"missing_ranges,omitempty"`
}

type fileListResponse struct {
	Files []fileStatusResponse `json:"files"`
}

func toFileStatus(snap domain.Snapshot) fileStatusResponse {
	return fileStatusResponse{
		Filename:         snap.Filename,
		Status:           string(snap.State),
		BytesReceived:    snap.BytesReceived,
		TotalBytes:       snap.TotalSize,
		NextExpectedByte: snap.NextExpectedByte,
		MissingRanges:    snap.MissingRanges,
	}
}

// handleUpload accepts one chunk: the body is the 17-byte binary header
// followed by the payload. The first chunk of a file declares the final
// size through the total_size query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.ErrInvalidCredentials)
		return
	}

	filename := r.URL.Query().Get("filename")
	if err := validateFilename(filename); err != nil {
		s.writeError(w, err)
		return
	}

	var totalSize int64
	if raw := r.URL.Query().Get("total_size"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, fmt.Errorf("%w: total_size must be a positive integer", errors.ErrOutOfBounds))
			return
		}
		totalSize = parsed
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody+chunk.HeaderSize))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: body exceeds the chunk size limit", errors.ErrOutOfBounds))
		return
	}

	snap, err := s.transfers.UploadChunk(owner, filename, totalSize, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileStatus(snap))
}

// handleDownload serves a completed artifact, honoring the Range header
// with 206 responses. Partial uploads are reported as not found; their
// progress is only visible through the status endpoint.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.ErrInvalidCredentials)
		return
	}
	filename := mux.Vars(r)["filename"]
	if err := validateFilename(filename); err != nil {
		s.writeError(w, err)
		return
	}

	requested, err := parseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	content, err := s.reader.Read(owner, filename, requested)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(content.Range.Len(), 10))

	if requested != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d",
			content.Range.Start, content.Range.End, content.TotalSize))
		w.WriteHeader(http.StatusPartialContent)
	}
	if _, err := io.Copy(w, content.Body); err != nil {
		s.log.Error("download interrupted", "owner", owner, "filename", filename, "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.ErrInvalidCredentials)
		return
	}
	filename := mux.Vars(r)["filename"]
	if err := validateFilename(filename); err != nil {
		s.writeError(w, err)
		return
	}

	snap, err := s.ledger.Status(owner, filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileStatus(snap))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.ErrInvalidCredentials)
		return
	}

	snapshots, err := s.ledger.List(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fileListResponse{
		Files: lo.Map(snapshots, func(snap domain.Snapshot, _ int) fileStatusResponse {
			return toFileStatus(snap)
		}),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.ErrInvalidCredentials)
		return
	}
	filename := mux.Vars(r)["filename"]
	if err := validateFilename(filename); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.transfers.Delete(owner, filename); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"detail": fmt.Sprintf("file %s deleted", filename),
	})
}

// parseRangeHeader understands "bytes=a-b", the open-ended "bytes=a-" and
// the suffix form "bytes=-b", which reads from the start of the file
// through offset b. A missing header means the whole file; End is negative
// for open-ended requests and resolved against the artifact size by the
// reader.
func parseRangeHeader(header string) (*chunk.Range, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, fmt.Errorf("%w: unsupported range unit", errors.ErrRangeNotSatisfiable)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || (startStr == "" && endStr == "") {
		return nil, fmt.Errorf("%w: malformed range header", errors.ErrRangeNotSatisfiable)
	}

	if startStr == "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return nil, fmt.Errorf("%w: malformed range header", errors.ErrRangeNotSatisfiable)
		}
		return &chunk.Range{Start: 0, End: end}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("%w: malformed range header", errors.ErrRangeNotSatisfiable)
	}
	end := int64(-1)
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return nil, fmt.Errorf("%w: malformed range header", errors.ErrRangeNotSatisfiable)
		}
	}
	return &chunk.Range{Start: start, End: end}, nil
}

// validateFilename rejects names that would escape the per-device
// directory. Filenames are identifiers, not paths.
func validateFilename(filename string) error {
	switch {
	case filename == "", len(filename) > 255:
		return fmt.Errorf("%w: filename must be 1-255 characters", errors.ErrInvalidFilename)
	case strings.ContainsAny(filename, `/\`), strings.Contains(filename, ".."):
		return fmt.Errorf("%w: filename must not contain path separators", errors.ErrInvalidFilename)
	}
	return nil
}
