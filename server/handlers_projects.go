package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/projects"
	"github.com/HyxiaoGe/prompthub/types"
)

// projectHandler serves the /projects endpoints.
type projectHandler struct {
	svc      *projects.Service
	pageSize int
}

func newProjectHandler(svc *projects.Service, pageSize int) *projectHandler {
	return &projectHandler{svc: svc, pageSize: pageSize}
}

type createProjectRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// projectDetail is a project plus the counts shown on its detail view.
type projectDetail struct {
	*types.Project
	PromptCount int `json:"prompt_count"`
	SceneCount  int `json:"scene_count"`
}

// Create handles POST /projects.
func (h *projectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), projects.CreateRequest{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		By:          callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// List handles GET /projects.
func (h *projectHandler) List(c *gin.Context) {
	page, err := pageParams(c, h.pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}
	writeList(c, items, page, total)
}

// Get handles GET /projects/:id.
func (h *projectHandler) Get(c *gin.Context) {
	d, err := h.svc.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, projectDetail{
		Project:     d.Project,
		PromptCount: d.PromptCount,
		SceneCount:  d.SceneCount,
	})
}

// Update handles PUT /projects/:id.
func (h *projectHandler) Update(c *gin.Context) {
	var req updateProjectRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), projects.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}

// Delete handles DELETE /projects/:id.
func (h *projectHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, gin.H{"id": id, "deleted": true})
}
