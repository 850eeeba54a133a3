package ui

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gastos/internal/core"
	"gastos/internal/dashboard"
	applog "gastos/internal/log"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for the form boundaries around the file.
const multipartOverhead = 1 << 20

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", raw)
	}
	return id, nil
}

// Load failures are logged by the store and the page renders what it has.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_ = s.store.Load(r.Context())
	s.render(w, r, http.StatusOK, "index.html", s.page(dashboard.EditState{}))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.WarnContext(r.Context(), "Upload too large",
				applog.FieldOperation, applog.OpImport,
				applog.FieldErrorType, applog.ErrorTypeTooLarge)
		}
		if s.upload.Begin() {
			s.upload.Finish(0, err)
		}
		s.afterAction(w, r)
		return
	}
	defer file.Close()

	if _, ok := s.upload.Submit(r.Context(), s.store, header.Filename, file); !ok {
		s.logger.DebugContext(r.Context(), "Upload already in progress", applog.FieldFile, header.Filename)
	}
	s.afterAction(w, r)
}

// lookup finds a row, reloading once when it is not in the last snapshot.
func (s *Server) lookup(r *http.Request) (core.Expense, bool) {
	id, err := parseID(r)
	if err != nil {
		return core.Expense{}, false
	}
	if e, ok := s.store.Find(id); ok {
		return e, true
	}
	_ = s.store.Load(r.Context())
	return s.store.Find(id)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	s.showRow(w, r, true)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.showRow(w, r, false)
}

func (s *Server) showRow(w http.ResponseWriter, r *http.Request, editing bool) {
	e, ok := s.lookup(r)
	if !ok {
		http.Error(w, "Gasto no encontrado", http.StatusNotFound)
		return
	}
	edit := dashboard.EditState{}.Select(e.ID)
	if !editing {
		edit = edit.Blur()
	}
	if isFragment(r) {
		s.render(w, r, http.StatusOK, "row", rowData{
			Expense:    e,
			Editing:    edit.IsEditing(e.ID),
			Categories: core.CategoryNames(),
		})
		return
	}
	s.render(w, r, http.StatusOK, "index.html", s.page(edit))
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "Gasto no encontrado", http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}
	// Failures are logged by the store; the table shows server truth either way.
	_, _ = dashboard.EditState{}.Select(id).Choose(r.Context(), s.store, r.PostFormValue("category"))
	s.afterAction(w, r)
}

// handleDelete removes a row only when the form carries confirm=yes.
// Otherwise it answers with the confirmation prompt.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}
	e, ok := s.lookup(r)
	if !ok {
		http.Error(w, "Gasto no encontrado", http.StatusNotFound)
		return
	}

	if r.PostFormValue("confirm") != "yes" {
		if isFragment(r) {
			s.render(w, r, http.StatusOK, "confirm", e)
			return
		}
		p := s.page(dashboard.EditState{})
		p.Confirm = &e
		s.render(w, r, http.StatusOK, "index.html", p)
		return
	}

	_ = s.store.Delete(r.Context(), e.ID)
	s.afterAction(w, r)
}
