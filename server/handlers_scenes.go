package server

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/scene"
	"github.com/HyxiaoGe/prompthub/types"
)

// sceneHandler serves the /scenes endpoints, including pipeline resolution
// and the dependency graph export.
type sceneHandler struct {
	svc      *scene.Service
	pageSize int
}

func newSceneHandler(svc *scene.Service, pageSize int) *sceneHandler {
	return &sceneHandler{svc: svc, pageSize: pageSize}
}

type createSceneRequest struct {
	ProjectID     string          `json:"project_id" binding:"required"`
	Slug          string          `json:"slug" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Pipeline      json.RawMessage `json:"pipeline" binding:"required"`
	MergeStrategy string          `json:"merge_strategy"`
	Separator     *string         `json:"separator"`
	OutputFormat  string          `json:"output_format"`
}

type updateSceneRequest struct {
	Name          *string         `json:"name"`
	Description   *string         `json:"description"`
	Pipeline      json.RawMessage `json:"pipeline"`
	MergeStrategy *string         `json:"merge_strategy"`
	Separator     *string         `json:"separator"`
	OutputFormat  *string         `json:"output_format"`
}

type resolveSceneRequest struct {
	Variables    types.Vars `json:"variables"`
	CallerSystem string     `json:"caller_system"`
}

// Create handles POST /scenes.
func (h *sceneHandler) Create(c *gin.Context) {
	var req createSceneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	sc, err := h.svc.Create(c.Request.Context(), scene.CreateRequest{
		ProjectID:     req.ProjectID,
		Slug:          req.Slug,
		Name:          req.Name,
		Description:   req.Description,
		Pipeline:      req.Pipeline,
		MergeStrategy: req.MergeStrategy,
		Separator:     req.Separator,
		OutputFormat:  req.OutputFormat,
		By:            callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, sc)
}

// List handles GET /scenes.
func (h *sceneHandler) List(c *gin.Context) {
	page, err := pageParams(c, h.pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), c.Query("project_id"), page)
	if err != nil {
		writeError(c, err)
		return
	}
	writeList(c, items, page, total)
}

// Get handles GET /scenes/:id.
func (h *sceneHandler) Get(c *gin.Context) {
	sc, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, sc)
}

// Update handles PUT /scenes/:id.
func (h *sceneHandler) Update(c *gin.Context) {
	var req updateSceneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	sc, err := h.svc.Update(c.Request.Context(), c.Param("id"), scene.UpdateRequest{
		Name:          req.Name,
		Description:   req.Description,
		Pipeline:      req.Pipeline,
		MergeStrategy: req.MergeStrategy,
		Separator:     req.Separator,
		OutputFormat:  req.OutputFormat,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, sc)
}

// Delete handles DELETE /scenes/:id.
func (h *sceneHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, gin.H{"id": id, "deleted": true})
}

// Resolve handles POST /scenes/:id/resolve.
func (h *sceneHandler) Resolve(c *gin.Context) {
	var req resolveSceneRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Resolve(c.Request.Context(), c.Param("id"), scene.ResolveRequest{
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

// Dependencies handles GET /scenes/:id/dependencies.
func (h *sceneHandler) Dependencies(c *gin.Context) {
	graph, err := h.svc.Dependencies(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, graph)
}
