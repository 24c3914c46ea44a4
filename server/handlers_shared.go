package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/prompts"
)

// sharedHandler serves the /shared/prompts marketplace endpoints.
type sharedHandler struct {
	svc      *prompts.Service
	pageSize int
}

func newSharedHandler(svc *prompts.Service, pageSize int) *sharedHandler {
	return &sharedHandler{svc: svc, pageSize: pageSize}
}

type forkPromptRequest struct {
	TargetProjectID string `json:"target_project_id" binding:"required"`
	Slug            string `json:"slug"`
}

// List handles GET /shared/prompts.
func (h *sharedHandler) List(c *gin.Context) {
	filter, err := promptFilterParams(c, h.pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	items, total, err := h.svc.ListShared(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	writeList(c, items, filterPage(filter), total)
}

// Fork handles POST /shared/prompts/:id/fork.
func (h *sharedHandler) Fork(c *gin.Context) {
	var req forkPromptRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	p, err := h.svc.Fork(c.Request.Context(), c.Param("id"), prompts.ForkRequest{
		TargetProjectID: req.TargetProjectID,
		Slug:            req.Slug,
		By:              callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, p)
}
