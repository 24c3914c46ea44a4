package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/refs"
	"github.com/HyxiaoGe/prompthub/types"
	"github.com/HyxiaoGe/prompthub/versions"
)

// promptHandler serves the /prompts endpoints, including renders, sharing,
// version publishing and the reference views hanging off a prompt.
type promptHandler struct {
	svc      *prompts.Service
	versions *versions.Service
	refs     *refs.Service
	pageSize int
}

func newPromptHandler(svc *prompts.Service, vs *versions.Service, rs *refs.Service, pageSize int) *promptHandler {
	return &promptHandler{svc: svc, versions: vs, refs: rs, pageSize: pageSize}
}

type createPromptRequest struct {
	ProjectID      string              `json:"project_id" binding:"required"`
	Slug           string              `json:"slug" binding:"required"`
	Name           string              `json:"name" binding:"required"`
	Description    string              `json:"description"`
	Content        string              `json:"content" binding:"required"`
	Format         string              `json:"format"`
	TemplateEngine string              `json:"template_engine"`
	Variables      []types.VariableDef `json:"variables"`
	Tags           []string            `json:"tags"`
	Category       string              `json:"category"`
	IsShared       bool                `json:"is_shared"`
}

type updatePromptRequest struct {
	Name           *string             `json:"name"`
	Description    *string             `json:"description"`
	Content        *string             `json:"content"`
	Format         *string             `json:"format"`
	TemplateEngine *string             `json:"template_engine"`
	Variables      []types.VariableDef `json:"variables"`
	Tags           []string            `json:"tags"`
	Category       *string             `json:"category"`
}

type renderPromptRequest struct {
	Variables    types.Vars `json:"variables"`
	CallerSystem string     `json:"caller_system"`
}

type publishVersionRequest struct {
	Bump      string              `json:"bump"`
	Content   *string             `json:"content"`
	Variables []types.VariableDef `json:"variables"`
	Changelog string              `json:"changelog"`
}

// Create handles POST /prompts.
func (h *promptHandler) Create(c *gin.Context) {
	var req createPromptRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), prompts.CreateRequest{
		ProjectID:      req.ProjectID,
		Slug:           req.Slug,
		Name:           req.Name,
		Description:    req.Description,
		Content:        req.Content,
		Format:         req.Format,
		TemplateEngine: req.TemplateEngine,
		Variables:      req.Variables,
		Tags:           req.Tags,
		Category:       req.Category,
		IsShared:       req.IsShared,
		By:             callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// List handles GET /prompts.
func (h *promptHandler) List(c *gin.Context) {
	filter, err := promptFilterParams(c, h.pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writeList(c, items, filterPage(filter), total)
}

// Get handles GET /prompts/:id.
func (h *promptHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// Update handles PUT /prompts/:id.
func (h *promptHandler) Update(c *gin.Context) {
	var req updatePromptRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), prompts.UpdateRequest{
		Name:           req.Name,
		Description:    req.Description,
		Content:        req.Content,
		Format:         req.Format,
		TemplateEngine: req.TemplateEngine,
		Variables:      req.Variables,
		Tags:           req.Tags,
		Category:       req.Category,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// Delete handles DELETE /prompts/:id.
func (h *promptHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, gin.H{"id": id, "deleted": true})
}

// Render handles POST /prompts/:id/render.
func (h *promptHandler) Render(c *gin.Context) {
	var req renderPromptRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Render(c.Request.Context(), c.Param("id"), prompts.RenderRequest{
		Variables:    req.Variables,
		CallerSystem: req.CallerSystem,
		CallerIP:     c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// Share handles POST /prompts/:id/share.
func (h *promptHandler) Share(c *gin.Context) {
	p, err := h.svc.Share(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// Unshare handles POST /prompts/:id/unshare.
func (h *promptHandler) Unshare(c *gin.Context) {
	p, err := h.svc.Unshare(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// Publish handles POST /prompts/:id/publish.
func (h *promptHandler) Publish(c *gin.Context) {
	var req publishVersionRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	v, err := h.versions.Publish(c.Request.Context(), c.Param("id"), versions.PublishRequest{
		Bump:      req.Bump,
		Content:   req.Content,
		Variables: req.Variables,
		Changelog: req.Changelog,
		By:        callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, v)
}

// ListVersions handles GET /prompts/:id/versions.
func (h *promptHandler) ListVersions(c *gin.Context) {
	items, err := h.versions.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, items)
}

// GetVersion handles GET /prompts/:id/versions/:version.
func (h *promptHandler) GetVersion(c *gin.Context) {
	v, err := h.versions.Get(c.Request.Context(), c.Param("id"), c.Param("version"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, v)
}

// ListRefs handles GET /prompts/:id/refs.
func (h *promptHandler) ListRefs(c *gin.Context) {
	r, err := h.refs.ListForPrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, r)
}

// Impact handles GET /prompts/:id/impact.
func (h *promptHandler) Impact(c *gin.Context) {
	impact, err := h.refs.GetImpact(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, impact)
}
