package web

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
}

// HandleList handles GET /notes, the board optionally filtered.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListNotesInput{
		ImportantOnly: parseBoolParam(r, "important"),
		Query:         q.Get("q"),
	}
	if q.Has("folder") {
		folder := q.Get("folder")
		input.FolderID = &folder
	}

	status, err := ops.Status(r.Context(), h.deps)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result := ops.ListNotes(h.deps, input)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	nav := "notes"
	if input.FolderID != nil {
		nav = *input.FolderID
	}
	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Notes",
			Version: h.renderer.version,
			Nav:     nav,
		},
		Notes:         result.Notes,
		Folders:       ops.ListFolders(h.deps),
		Status:        status,
		FolderID:      q.Get("folder"),
		Query:         input.Query,
		ImportantOnly: input.ImportantOnly,
	})
}

// HandleDetail handles GET /notes/{id} and shows a single note.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseNoteID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	n, err := ops.GetNote(h.deps, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, n)
		return
	}

	var folder string
	if f, ok := h.deps.Board.Folder(n.FolderID); ok {
		folder = f.Name
	}
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   titleOf(*n),
			Version: h.renderer.version,
			Nav:     n.FolderID,
		},
		Note:         n,
		Folder:       folder,
		RenderedHTML: renderMarkdown(n.Content),
	})
}

// HandleDelete handles DELETE /notes/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseNoteID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.DeleteNote(r.Context(), h.deps, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/notes")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

// HandleSync handles POST /sync and runs a full sync cycle.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Online() {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("no remote provider configured"))
		return
	}

	result, err := ops.Sync(r.Context(), h.deps)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="sync-result">` + template.HTMLEscapeString(syncMessage(result)) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func syncMessage(res *ops.SyncOutput) string {
	if res.Skipped {
		return "A sync is already running."
	}
	msg := "Uploaded " + strconv.Itoa(res.Uploaded) +
		", updated " + strconv.Itoa(res.Updated) +
		", downloaded " + strconv.Itoa(res.Downloaded) + "."
	if failed := res.UploadFailed + res.DownloadFailed; failed > 0 {
		msg += " " + strconv.Itoa(failed) + " failed."
	}
	return msg
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
