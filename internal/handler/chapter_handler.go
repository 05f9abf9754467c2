package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bioweaver/internal/pkg/errcode"
	"github.com/xxxsen/bioweaver/internal/pkg/response"
	"github.com/xxxsen/bioweaver/internal/service"
)

type ChapterHandler struct {
	chapters       ChapterService
	maxUploadBytes int64
}

func NewChapterHandler(chapters ChapterService, maxUploadBytes int64) *ChapterHandler {
	return &ChapterHandler{chapters: chapters, maxUploadBytes: maxUploadBytes}
}

// Upload takes the chapter fields from the query string and the audio from the
// multipart "file" part.
func (h *ChapterHandler) Upload(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "user_id is required")
		return
	}
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "title is required")
		return
	}
	segment := 0
	if raw := c.Query("segment_index"); raw != "" {
		segment, err = strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid segment_index")
			return
		}
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, errcode.ErrInvalidFile,
				"file exceeds "+formatUploadLimit(h.maxUploadBytes))
			return
		}
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer file.Close()

	chapter, err := h.chapters.Upload(c.Request.Context(), service.UploadInput{
		UserID:       userID,
		Title:        title,
		AnchorPrompt: c.Query("anchor_prompt"),
		SegmentIndex: segment,
		FileName:     header.Filename,
		Body:         file,
		Size:         header.Size,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapter)
}

func (h *ChapterHandler) List(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	chapters, err := h.chapters.List(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapters)
}

func (h *ChapterHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapters.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapter)
}

type transcribeRequest struct {
	TranscriptText *string `json:"transcript_text"`
	AnchorPrompt   string  `json:"anchor_prompt"`
	Model          string  `json:"model"`
}

func (h *ChapterHandler) Transcribe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TranscriptText == nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "transcript_text is required")
		return
	}
	chapter, err := h.chapters.SubmitTranscript(c.Request.Context(), id, *req.TranscriptText, req.AnchorPrompt, req.Model)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapter)
}

func (h *ChapterHandler) Polish(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapters.Polish(c.Request.Context(), id, c.Query("model"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapter)
}

func (h *ChapterHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch service.ChapterPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	chapter, err := h.chapters.Update(c.Request.Context(), id, patch)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chapter)
}

func (h *ChapterHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.chapters.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
