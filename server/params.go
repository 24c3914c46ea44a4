package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
)

const maxPageSize = 100

// pageParams reads ?page and ?page_size with the given default size.
// Page is 1-based; size is clamped to maxPageSize.
func pageParams(c *gin.Context, defaultSize int) (store.Page, error) {
	page := store.Page{Number: 1, Size: defaultSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, apperrors.Validation(fmt.Sprintf("invalid page %q", raw))
		}
		page.Number = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, apperrors.Validation(fmt.Sprintf("invalid page_size %q", raw))
		}
		page.Size = n
	}
	if page.Size > maxPageSize {
		page.Size = maxPageSize
	}
	return page, nil
}

// promptFilterParams reads the prompt list query parameters.
func promptFilterParams(c *gin.Context, defaultSize int) (store.PromptFilter, error) {
	page, err := pageParams(c, defaultSize)
	if err != nil {
		return store.PromptFilter{}, err
	}

	f := store.PromptFilter{
		ProjectID: c.Query("project_id"),
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		Order:     c.DefaultQuery("order", "desc"),
		Page:      page.Number,
		PageSize:  page.Size,
	}
	if raw := c.Query("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}
	if raw := c.Query("is_shared"); raw != "" {
		shared, err := strconv.ParseBool(raw)
		if err != nil {
			return store.PromptFilter{}, apperrors.Validation(fmt.Sprintf("invalid is_shared %q", raw))
		}
		f.IsShared = &shared
	}
	return f, nil
}

// filterPage extracts the pagination of a prompt filter for the list meta.
func filterPage(f store.PromptFilter) store.Page {
	return store.Page{Number: f.Page, Size: f.PageSize}
}

// bindJSON decodes the request body, turning malformed input into a
// validation error so the envelope carries code 42200 instead of a 500.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.Validation("malformed request body").WithCause(err)
	}
	return nil
}
