package handler

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/extract"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errcode"
	pkgErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/response"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/service"
)

const maxUploadBytes = 20 << 20

type StoryHandler struct {
	stories    *service.StoryService
	paragraphs *service.ParagraphService
}

func NewStoryHandler(stories *service.StoryService, paragraphs *service.ParagraphService) *StoryHandler {
	return &StoryHandler{stories: stories, paragraphs: paragraphs}
}

type ingestRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

type ingestResponse struct {
	StoryID string `json:"story_id"`
	Title   string `json:"title"`
	Chunks  int    `json:"chunks"`
}

// Create allocates a fresh story id, indexes the text and persists the
// display paragraphs.
func (h *StoryHandler) Create(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, appErr.ErrInvalid, "text is required")
		return
	}
	ctx := c.Request.Context()
	storyID, err := h.stories.AllocateStoryID(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	h.ingest(c, storyID, req.Title, req.Text)
}

// Update re-indexes an existing story in place, replacing chunks and
// paragraphs wholesale.
func (h *StoryHandler) Update(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, appErr.ErrInvalid, "text is required")
		return
	}
	storyID := c.Param("id")
	if !h.stories.Exists(c.Request.Context(), storyID) {
		handleError(c, fmt.Errorf("story %s: %w", storyID, pkgErr.ErrNotFound))
		return
	}
	h.ingest(c, storyID, req.Title, req.Text)
}

// Upload accepts a multipart file, extracts its text and indexes it under a
// fresh story id. The title defaults to the filename without extension.
func (h *StoryHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErr.ErrInvalidFile, "file is required")
		return
	}
	if file.Size > maxUploadBytes {
		response.Error(c, appErr.ErrInvalidFile, "file too large")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, appErr.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, appErr.ErrUploadFailed, "failed to read file")
		return
	}
	text, err := extract.Text(file.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}
	ctx := c.Request.Context()
	storyID, err := h.stories.AllocateStoryID(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	h.ingest(c, storyID, title, text)
}

func (h *StoryHandler) ingest(c *gin.Context, storyID, title, text string) {
	ctx := c.Request.Context()
	chunks, _, err := h.stories.Index(ctx, storyID, title, text)
	if err != nil {
		handleError(c, err)
		return
	}
	// paragraph persistence is display-only; indexing already succeeded
	if err := h.paragraphs.SplitAndPersist(ctx, storyID, title, text); err != nil {
		logutil.GetLogger(ctx).Warn("persist paragraphs failed",
			zap.String("story_id", storyID), zap.Error(err))
	}
	response.Success(c, ingestResponse{StoryID: storyID, Title: title, Chunks: chunks})
}

func (h *StoryHandler) List(c *gin.Context) {
	response.Success(c, h.stories.List(c.Request.Context()))
}

type deleteResponse struct {
	Deleted string `json:"deleted"`
}

func (h *StoryHandler) Delete(c *gin.Context) {
	storyID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.stories.Delete(ctx, storyID); err != nil {
		handleError(c, err)
		return
	}
	if err := h.paragraphs.Delete(ctx, storyID); err != nil {
		logutil.GetLogger(ctx).Warn("delete paragraphs failed",
			zap.String("story_id", storyID), zap.Error(err))
	}
	response.Success(c, deleteResponse{Deleted: storyID})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (h *StoryHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErr.ErrInvalid, "invalid request body")
		return
	}
	answer, err := h.stories.Ask(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, askResponse{Answer: answer})
}

func (h *StoryHandler) Paragraphs(c *gin.Context) {
	paragraphs, err := h.paragraphs.Paragraphs(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, paragraphs)
}
