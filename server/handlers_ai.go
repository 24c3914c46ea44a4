package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/ai"
	"github.com/HyxiaoGe/prompthub/types"
)

// aiHandler serves the /ai endpoints.
type aiHandler struct {
	svc *ai.Service
}

func newAIHandler(svc *ai.Service) *aiHandler {
	return &aiHandler{svc: svc}
}

type generateRequest struct {
	Description  string `json:"description" binding:"required"`
	TargetFormat string `json:"target_format"`
	Language     string `json:"language"`
	Count        int    `json:"count"`
	AutoSave     bool   `json:"auto_save"`
	ProjectID    string `json:"project_id"`
}

type enhanceRequest struct {
	Content  string   `json:"content" binding:"required"`
	Aspects  []string `json:"aspects"`
	Language string   `json:"language"`
}

type variantsRequest struct {
	Content      string   `json:"content" binding:"required"`
	VariantTypes []string `json:"variant_types"`
	Count        int      `json:"count"`
	Language     string   `json:"language"`
}

type evaluateRequest struct {
	Content  string   `json:"content" binding:"required"`
	Criteria []string `json:"criteria"`
}

type evaluateBatchRequest struct {
	PromptIDs []string `json:"prompt_ids" binding:"required"`
	Criteria  []string `json:"criteria"`
}

type lintRequest struct {
	Content   string              `json:"content" binding:"required"`
	Variables []types.VariableDef `json:"variables"`
}

// Generate handles POST /ai/generate.
func (h *aiHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), ai.GenerateRequest{
		Description:  req.Description,
		TargetFormat: req.TargetFormat,
		Language:     req.Language,
		Count:        req.Count,
		AutoSave:     req.AutoSave,
		ProjectID:    req.ProjectID,
		By:           callerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// Enhance handles POST /ai/enhance.
func (h *aiHandler) Enhance(c *gin.Context) {
	var req enhanceRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Enhance(c.Request.Context(), ai.EnhanceRequest{
		Content:  req.Content,
		Aspects:  req.Aspects,
		Language: req.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// Variants handles POST /ai/variants.
func (h *aiHandler) Variants(c *gin.Context) {
	var req variantsRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Variants(c.Request.Context(), ai.VariantsRequest{
		Content:      req.Content,
		VariantTypes: req.VariantTypes,
		Count:        req.Count,
		Language:     req.Language,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// Evaluate handles POST /ai/evaluate.
func (h *aiHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Evaluate(c.Request.Context(), ai.EvaluateRequest{
		Content:  req.Content,
		Criteria: req.Criteria,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// EvaluateBatch handles POST /ai/evaluate-batch.
func (h *aiHandler) EvaluateBatch(c *gin.Context) {
	var req evaluateBatchRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.EvaluateBatch(c.Request.Context(), ai.EvaluateBatchRequest{
		PromptIDs: req.PromptIDs,
		Criteria:  req.Criteria,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}

// Lint handles POST /ai/lint.
func (h *aiHandler) Lint(c *gin.Context) {
	var req lintRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.Lint(c.Request.Context(), ai.LintRequest{
		Content:   req.Content,
		Variables: req.Variables,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, result)
}
