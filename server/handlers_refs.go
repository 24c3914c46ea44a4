package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/refs"
)

// refHandler serves the /refs endpoints.
type refHandler struct {
	svc *refs.Service
}

func newRefHandler(svc *refs.Service) *refHandler {
	return &refHandler{svc: svc}
}

type createRefRequest struct {
	SourcePromptID string         `json:"source_prompt_id" binding:"required"`
	TargetPromptID string         `json:"target_prompt_id" binding:"required"`
	RefType        string         `json:"ref_type"`
	OverrideConfig map[string]any `json:"override_config"`
}

// Create handles POST /refs.
func (h *refHandler) Create(c *gin.Context) {
	var req createRefRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	ref, err := h.svc.Create(c.Request.Context(), refs.CreateRequest{
		SourcePromptID: req.SourcePromptID,
		TargetPromptID: req.TargetPromptID,
		RefType:        req.RefType,
		OverrideConfig: req.OverrideConfig,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, ref)
}

// Delete handles DELETE /refs/:id.
func (h *refHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeData(c, gin.H{"id": id, "deleted": true})
}
