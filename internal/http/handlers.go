package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"abbonamenti/internal/core"
	applog "abbonamenti/internal/log"
	"abbonamenti/internal/metrics"
	"abbonamenti/internal/store"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	field, dir := ParseListQuery(r.URL.Query())
	ov, err := s.svc.List(r.Context(), field, dir)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	s.metrics.ObserveOverview(ov)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", buildIndexView(ov)); err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender, applog.NewFields())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleIndexForm keeps the single-form contract: the submit button's name
// (add or edit) selects the action. A post with neither renders the list.
func (s *Server) handleIndexForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	switch {
	case r.PostForm.Has(formAdd):
		s.add(w, r)
	case r.PostForm.Has(formEdit):
		id := r.PostForm.Get(formID)
		if id == "" {
			s.metrics.RecordMutation(applog.OpUpdate, metrics.ResultInvalid)
			http.Error(w, "missing field: id", http.StatusBadRequest)
			return
		}
		s.edit(w, r, id)
	default:
		s.handleIndex(w, r)
	}
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.add(w, r)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.edit(w, r, chi.URLParam(r, "id"))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	found, err := s.svc.Delete(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !found {
		s.metrics.RecordMutation(applog.OpDelete, metrics.ResultIgnored)
		redirectHome(w, r)
		return
	}
	s.metrics.RecordMutation(applog.OpDelete, metrics.ResultSaved)
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogSubscriptionChanged(ctx, applog.OpDelete, id, "", "", 0)
	redirectHome(w, r)
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	field, dir := ParseListQuery(r.URL.Query())
	ov, err := s.svc.List(r.Context(), field, dir)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list subscriptions", applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	s.metrics.ObserveOverview(ov)
	writeJSON(w, http.StatusOK, buildAPIOverview(ov))
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, ok, err := ParseAddForm(r.PostForm)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	if !ok {
		s.metrics.RecordMutation(applog.OpCreate, metrics.ResultIgnored)
		redirectHome(w, r)
		return
	}
	sub, err := s.svc.Add(ctx, f.Name, f.Cost, f.Day)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.metrics.RecordMutation(applog.OpCreate, metrics.ResultSaved)
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogSubscriptionChanged(ctx, applog.OpCreate, sub.ID, sub.Name, core.FormatCost(sub.Cost), sub.Day)
	redirectHome(w, r)
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	f, err := ParseEditForm(r.PostForm)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	found, err := s.svc.Edit(ctx, id, f.Name, f.Cost, f.Day)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if !found {
		s.metrics.RecordMutation(applog.OpUpdate, metrics.ResultIgnored)
		redirectHome(w, r)
		return
	}
	s.metrics.RecordMutation(applog.OpUpdate, metrics.ResultSaved)
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogSubscriptionChanged(ctx, applog.OpUpdate, id, f.Name, core.FormatCost(f.Cost), f.Day)
	redirectHome(w, r)
}

// fail maps input errors to 400 and everything else to a logged 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if isBadInput(err) {
		if op != applog.OpList {
			s.metrics.RecordMutation(op, metrics.ResultInvalid)
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if op != applog.OpList {
		s.metrics.RecordMutation(op, metrics.ResultError)
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Subscription operation failed", err, applog.ComponentSubscription, op, applog.NewFields())
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// Stored values that fail to parse are server faults even though they wrap
// the same sentinels as bad form input.
func isBadInput(err error) bool {
	var pe *store.ParseError
	if errors.As(err, &pe) {
		return false
	}
	return errors.Is(err, errMissingField) ||
		errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrInvalidCost) ||
		errors.Is(err, core.ErrInvalidDay)
}
