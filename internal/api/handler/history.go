package handler

import (
	"net/http"

	"github.com/kiranshivaraju/incidentdesk/internal/api/response"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
)

// History serves the shared history log.
type History struct {
	store *history.Store
}

func NewHistory(s *history.Store) *History {
	return &History{store: s}
}

// List handles GET /history.
func (h *History) List(w http.ResponseWriter, r *http.Request) {
	entries := h.store.Entries()
	response.Collection(w, entries, response.ListMeta{Total: len(entries), Limit: history.MaxEntries})
}

// Clear handles DELETE /history. The log is emptied even when persisting fails.
func (h *History) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		response.Error(w, http.StatusInternalServerError, "PERSISTENCE_FAILED",
			"History cleared but could not be saved", nil)
		return
	}
	response.NoContent(w)
}
