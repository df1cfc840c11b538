package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/necta-results-api/internal/dto"
	"github.com/noah-isme/necta-results-api/internal/service"
	appErrors "github.com/noah-isme/necta-results-api/pkg/errors"
	"github.com/noah-isme/necta-results-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error)
	Resolve(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler serves result sheet exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create godoc
// @Summary Export a class result sheet
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Class, exam and format (csv or pdf)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/export [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	resp, err := h.exports.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Download godoc
// @Summary Download an exported result sheet
// @Tags Results
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /results/export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.exports.Resolve(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, download.ContentType, download.File, nil)
}
