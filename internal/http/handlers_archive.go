package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"dcledger/internal/core"
	"dcledger/internal/export"
)

func (s *Server) handleArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ids, err := s.archives.ListArchives(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	writeJSON(w, http.StatusOK, out)
}

// handleArchiveDownload serves /api/archives/{id}/download, streaming
// the monthly workbook as-is.
func (s *Server) handleArchiveDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	parts := pathTail(r, "/api/archives/")
	if len(parts) != 2 || parts[1] != "download" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := export.ParseArchiveID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad archive id")
		return
	}

	rc, err := s.archives.OpenArchive(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id.String()+`.xlsx"`)
	if _, err := io.Copy(w, rc); err != nil {
		slog.ErrorContext(r.Context(), "Archive download interrupted", "archive", id.String(), "error", err)
	}
}
