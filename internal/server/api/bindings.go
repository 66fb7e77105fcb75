package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/ayusman/phantomhand/internal/action"
	"github.com/ayusman/phantomhand/internal/store"
)

// BindingHandler handles HTTP requests for stored action bindings.
type BindingHandler struct {
	store    *store.Store
	onChange func([]action.Binding)
}

// NewBindingHandler creates a BindingHandler. onChange, if set, receives
// the stored bindings after every successful change.
func NewBindingHandler(s *store.Store, onChange func([]action.Binding)) *BindingHandler {
	return &BindingHandler{store: s, onChange: onChange}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createBindingRequest struct {
	Trigger string         `json:"trigger"`
	Action  string         `json:"action"`
	Params  map[string]any `json:"params"`
	Enabled *bool          `json:"enabled"`
}

type updateBindingRequest struct {
	Trigger string         `json:"trigger"`
	Action  string         `json:"action"`
	Params  map[string]any `json:"params"`
	Enabled *bool          `json:"enabled"`
}

type listBindingsResponse struct {
	// Bindings are the stored overrides.
	Bindings []action.Binding `json:"bindings"`
	// Effective is the result of overlaying them on the defaults.
	Effective []action.Binding `json:"effective"`
	Actions   []string         `json:"actions"`
}

func effective(stored []action.Binding) []action.Binding {
	merged := action.Merge(action.DefaultBindings(), stored)
	out := make([]action.Binding, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trigger < out[j].Trigger })
	return out
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}
	if bindings == nil {
		bindings = []action.Binding{}
	}

	writeJSON(w, http.StatusOK, listBindingsResponse{
		Bindings:  bindings,
		Effective: effective(bindings),
		Actions:   action.KnownActions(),
	})
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Trigger == "" {
		writeError(w, http.StatusBadRequest, "trigger is required")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	b := action.Binding{
		Trigger: req.Trigger,
		Action:  req.Action,
		Params:  req.Params,
		Enabled: true,
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if err := b.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Bindings().Create(&b); err != nil {
		if errors.Is(err, store.ErrDuplicateTrigger) {
			writeError(w, http.StatusConflict, "Trigger already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	h.changed()
	writeJSON(w, http.StatusCreated, b)
}

func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Trigger != "" {
		b.Trigger = req.Trigger
	}
	if req.Action != "" {
		b.Action = req.Action
	}
	if req.Params != nil {
		b.Params = req.Params
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if err := b.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Bindings().Update(&b); err != nil {
		if errors.Is(err, store.ErrDuplicateTrigger) {
			writeError(w, http.StatusConflict, "Trigger already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	h.changed()
	writeJSON(w, http.StatusOK, b)
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (h *BindingHandler) changed() {
	if h.onChange == nil {
		return
	}
	bindings, err := h.store.Bindings().List()
	if err != nil {
		slog.Error("reload bindings", "error", err)
		return
	}
	h.onChange(bindings)
}
