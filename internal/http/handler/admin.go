package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/http/middleware"
	"visa-portal/internal/search"
	"visa-portal/internal/service"
)

type AdminHandler struct {
	transfer    service.TransferService
	apps        service.ApplicationService
	maxUploadMB int
}

func NewAdminHandler(transfer service.TransferService, apps service.ApplicationService, maxUploadMB int) *AdminHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &AdminHandler{transfer: transfer, apps: apps, maxUploadMB: maxUploadMB}
}

// Import accepts a multipart upload in the "file" field. Row failures come
// back inside the summary with a 200.
func (h *AdminHandler) Import(c *gin.Context) {
	limit := int64(h.maxUploadMB) << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithError(c, errors.NewImportParseFailedError(fmt.Errorf("multipart field \"file\": %w", err)))
		return
	}
	if header.Size > limit {
		middleware.AbortWithError(c, errors.NewImportParseFailedError(
			fmt.Errorf("file is %d bytes, limit is %d MB", header.Size, h.maxUploadMB)))
		return
	}

	f, err := header.Open()
	if err != nil {
		middleware.AbortWithError(c, errors.NewImportParseFailedError(err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		middleware.AbortWithError(c, errors.NewImportParseFailedError(err))
		return
	}

	summary, err := h.transfer.Import(c.Request.Context(), actor(c), header.Filename, data)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AdminHandler) Export(c *gin.Context) {
	file, err := h.transfer.Export(c.Request.Context(), actor(c), c.Param("id"), c.Query("format"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("X-Record-Count", strconv.Itoa(file.Count))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *AdminHandler) Search(c *gin.Context) {
	q := search.Query{
		Text:      c.Query("q"),
		MeetingID: c.Query("meetingId"),
		Status:    c.Query("status"),
	}
	var err error
	if q.From, err = intQuery(c, "from"); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if q.Size, err = intQuery(c, "size"); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	res, err := h.apps.Search(c.Request.Context(), actor(c), q)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewApplicationValidationFailedError(name + " must be a non-negative integer")
	}
	return n, nil
}
