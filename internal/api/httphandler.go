package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"cardd/internal/ports"
	"cardd/internal/types"
)

const invalidIDMessage = "Invalid client ID format. Use only letters, numbers, hyphens, and underscores (3-63 characters)"

type Handler struct {
	Store ports.CardStore
	Cfg   types.Config

	started time.Time
}

func NewHandler(store ports.CardStore, cfg types.Config) *Handler {
	return &Handler{
		Store:   store,
		Cfg:     cfg,
		started: time.Now(),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/check-client/{clientId}", h.handleCheckClient)
	mux.HandleFunc("POST /api/deploy", h.handleDeploy)
	mux.HandleFunc("PUT /api/deploy/{clientId}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/deploy/{clientId}", h.handleDelete)
	mux.HandleFunc("GET /api/export/{clientId}", h.handleExport)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("/", h.handleNotFound)
	return accessLog(allowCORS(mux))
}

// handleNotFound keeps the all-JSON contract for unmatched paths.
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]any{
		"error": "Not Found",
		"path":  r.URL.Path,
	})
}

// handleCheckClient reports whether a client ID is still free to claim.
func (h *Handler) handleCheckClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	taken, err := h.Store.Exists(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, types.ErrInvalidIdentifier) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"available": false,
				"error":     invalidIDMessage,
			})
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"available": !taken,
		"clientId":  clientID,
		"url":       h.Cfg.CardURL(clientID),
	})
}

// handleDeploy creates a new card bundle.
func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.readSpec(w, r)
	if !ok {
		return
	}

	var missing []string
	if spec.ClientID == "" {
		missing = append(missing, "clientId")
	}
	if spec.HTML == "" {
		missing = append(missing, "html")
	}
	if len(missing) > 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Missing required fields",
			"missing": missing,
		})
		return
	}

	dep, err := h.Store.Create(r.Context(), spec.ClientID, spec)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidIdentifier):
			h.errorJSON(w, http.StatusBadRequest, invalidIDMessage)
		case errors.Is(err, types.ErrMissingRequiredField):
			h.errorJSON(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrAlreadyExists):
			h.errorJSON(w, http.StatusConflict, "This client ID is already taken. Please choose a different one.")
		default:
			h.internalError(w, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"clientId": dep.ClientID,
		"url":      h.Cfg.CardURL(dep.ClientID),
		"message":  "Card deployed successfully!",
	})
}

// handleUpdate overwrites files of an existing card bundle.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	spec, ok := h.readSpec(w, r)
	if !ok {
		return
	}

	dep, err := h.Store.Update(r.Context(), clientID, spec)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidIdentifier):
			h.errorJSON(w, http.StatusBadRequest, invalidIDMessage)
		case errors.Is(err, types.ErrNotFound):
			h.errorJSON(w, http.StatusNotFound, "Client not found")
		default:
			h.internalError(w, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"clientId": dep.ClientID,
		"url":      h.Cfg.CardURL(dep.ClientID),
		"message":  "Card updated successfully!",
	})
}

// handleDelete unpublishes a card bundle.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	err := h.Store.Delete(r.Context(), clientID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidIdentifier):
			h.errorJSON(w, http.StatusBadRequest, invalidIDMessage)
		case errors.Is(err, types.ErrNotFound):
			h.errorJSON(w, http.StatusNotFound, "Client not found")
		default:
			h.internalError(w, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Card unpublished successfully",
	})
}

// handleExport downloads the whole bundle as a gzip tarball.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	taken, err := h.Store.Exists(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, types.ErrInvalidIdentifier) {
			h.errorJSON(w, http.StatusBadRequest, invalidIDMessage)
			return
		}
		h.internalError(w, err)
		return
	}
	if !taken {
		h.errorJSON(w, http.StatusNotFound, "Client not found")
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clientID+".tar.gz"))
	if err := h.Store.Export(r.Context(), clientID, w); err != nil {
		// Headers are gone; all we can do is log and cut the stream short.
		log.WithError(err).WithField("clientId", clientID).Error("export failed mid-stream")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
		"goVersion": runtime.Version(),
		"cardsDir":  h.Cfg.CardsDir,
		"baseUrl":   h.Cfg.BaseURL,
	})
}

// readSpec reads and decodes a CardSpec body, answering the request itself on
// failure.
func (h *Handler) readSpec(w http.ResponseWriter, r *http.Request) (types.CardSpec, bool) {
	var spec types.CardSpec
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.BodyLimit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return spec, false
		}
		h.errorJSON(w, http.StatusBadRequest, "read error")
		return spec, false
	}
	defer func() {
		_ = r.Body.Close()
	}()
	if len(body) == 0 {
		h.errorJSON(w, http.StatusBadRequest, "empty body")
		return spec, false
	}
	if err := json.Unmarshal(body, &spec); err != nil {
		h.errorJSON(w, http.StatusBadRequest, "invalid json")
		return spec, false
	}
	return spec, true
}

func (h *Handler) errorJSON(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, map[string]any{"error": msg})
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.WithError(err).Error("request failed")
	h.errorJSON(w, http.StatusInternalServerError, "Internal Server Error")
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
