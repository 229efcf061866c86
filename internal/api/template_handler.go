package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/Foreman/internal/domain"
)

// ListTemplates возвращает все шаблоны.
// GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.manager.Templates().List(r.Context())
	if HandleDomainError(w, h.logger, err, "") {
		return
	}

	result := make([]TemplateResponse, len(templates))
	for i, tpl := range templates {
		result[i] = TemplateFromDomain(tpl)
	}

	List(w, result, len(result))
}

// CreateTemplate создаёт шаблон.
// POST /api/v1/templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}

	tpl := &domain.Template{
		ID:        req.ID,
		Title:     req.Title,
		Schema:    req.Schema,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.manager.Templates().Put(r.Context(), tpl); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, TemplateFromDomain(*tpl))
}

// GetTemplate возвращает шаблон по ID.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.manager.Templates().Get(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err, "template not found") {
		return
	}

	Success(w, TemplateFromDomain(*tpl))
}
