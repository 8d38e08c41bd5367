package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// itemView is the JSON shape of an item in API responses
type itemView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mimeType"`
	Caption     string `json:"caption"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
	Views       int64  `json:"views"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

func toView(item *domain.Item) itemView {
	return itemView{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Slug:        item.Slug,
		Status:      item.Status,
		Size:        item.Size,
		MimeType:    item.MimeType,
		Caption:     item.Caption,
		AspectRatio: item.AspectRatio,
		Likes:       item.Likes,
		Comments:    item.Comments,
		Views:       item.Views,
		CreatedAt:   item.CreatedAt.UnixMilli(),
		UpdatedAt:   item.UpdatedAt.UnixMilli(),
	}
}

func toViews(items []*domain.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, toView(item))
	}
	return views
}

// handleListItems serves the public gallery listing, published items only
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := s.listFilter(r)
	items, total, err := s.catalog.ListItems(filter, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"total": total,
		"items": toViews(items),
	})
}

// handleAdminListItems serves the admin listing across all statuses
func (s *Server) handleAdminListItems(w http.ResponseWriter, r *http.Request) {
	filter := s.listFilter(r)
	filter.Status = r.URL.Query().Get("status")
	items, total, err := s.catalog.ListItems(filter, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"total": total,
		"items": toViews(items),
	})
}

// handleSetStatus applies a status change to one item
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   string `json:"status"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidInput)
		return
	}

	item, err := s.catalog.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"item": toView(item),
	})
}

// handleEngagement records one like, comment or view
func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidInput)
		return
	}

	item, err := s.catalog.RecordEngagement(chi.URLParam(r, "id"), req.User, req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"item": toView(item),
	})
}

// handleAdminDelete purges an item permanently
func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Purge(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAdminSweep triggers an immediate reconciliation sweep
func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"skipped": result.Skipped,
		"sweep": map[string]int{
			"inserted":   result.Inserted,
			"updated":    result.Updated,
			"archived":   result.Archived,
			"restored":   result.Restored,
			"duplicates": result.Duplicates,
			"errors":     result.Errors,
		},
	})
}

// handleAdminDeadLetters lists recent dead-lettered notifications
func (s *Server) handleAdminDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.catalog.ListDeadLetters(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type dlView struct {
		ID        string `json:"id"`
		Path      string `json:"path"`
		Error     string `json:"error"`
		CreatedAt int64  `json:"createdAt"`
	}
	views := make([]dlView, 0, len(entries))
	for _, e := range entries {
		views = append(views, dlView{
			ID:        e.ID,
			Path:      e.Path,
			Error:     e.Error,
			CreatedAt: e.CreatedAt.UnixMilli(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"deadLetters": views,
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"error": string(domain.KindInternal),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	})
}

// listFilter reads the shared paging and category parameters, clamping the
// page size to the configured bounds
func (s *Server) listFilter(r *http.Request) port.ItemFilter {
	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("size"))
	if size <= 0 {
		size = s.config.PageSizeDefault
	}
	if size > s.config.PageSizeMax {
		size = s.config.PageSizeMax
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	return port.ItemFilter{
		Category: q.Get("category"),
		Offset:   (page - 1) * size,
		Limit:    size,
	}
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:  http.StatusBadRequest,
	domain.KindAuth:        http.StatusUnauthorized,
	domain.KindRateLimited: http.StatusTooManyRequests,
	domain.KindNotFound:    http.StatusNotFound,
	domain.KindConflict:    http.StatusConflict,
	domain.KindInternal:    http.StatusInternalServerError,
}

// writeError maps a domain error to its stable kind and HTTP status. The
// kind is all a caller sees; internal detail stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := domain.Classify(err)
	if kind == domain.KindInternal {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, kindStatus[kind], map[string]any{
		"ok":    false,
		"error": string(kind),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
