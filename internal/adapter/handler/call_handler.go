package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/Auremas/voxanalyze-mvp/errors"
	calldto "github.com/Auremas/voxanalyze-mvp/internal/adapter/dto/call"
	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/http/middleware"
	"github.com/Auremas/voxanalyze-mvp/internal/usecase/record"
)

// maxUploadSize caps multipart audio uploads at 200 MB
const maxUploadSize = 200 << 20

// Call handles call recording endpoints
type Call struct {
	svc    *record.Service
	logger *zap.Logger
}

// NewCallHandler creates a new call handler
func NewCallHandler(svc *record.Service, logger *zap.Logger) *Call {
	return &Call{svc: svc, logger: logger}
}

// Upload accepts a multipart audio upload and starts processing.
// Responds 202: the transcript and analysis are produced asynchronously.
func (h *Call) Upload(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("audio file is required"))
	}
	if fileHeader.Size > maxUploadSize {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("audio file exceeds the size limit"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("failed to open uploaded file"))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	created, err := h.svc.Upload(c.Request().Context(), principal, fileHeader.Filename, contentType, file)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, http.StatusAccepted, calldto.FromEntity(created))
}

// List returns the calls visible to the caller
func (h *Call) List(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	calls, err := h.svc.List(c.Request().Context(), principal)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, http.StatusOK, calldto.FromEntities(calls))
}

// Get returns one call with its decrypted payload documents
func (h *Call) Get(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	id, err := parseCallID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	call, err := h.svc.GetCall(c.Request().Context(), principal, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, http.StatusOK, calldto.FromEntity(call))
}

// GetTranscript returns the masked transcript of a call
func (h *Call) GetTranscript(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	id, err := parseCallID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	transcript, err := h.svc.GetTranscript(c.Request().Context(), principal, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, http.StatusOK, calldto.TranscriptFromEntity(transcript))
}

// GetAudio returns a short-lived download URL for the raw recording
func (h *Call) GetAudio(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	id, err := parseCallID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	url, err := h.svc.GetAudioURL(c.Request().Context(), principal, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, http.StatusOK, calldto.AudioURLResponse{URL: url})
}

// Delete removes a call and its audio. Repeating a delete succeeds.
func (h *Call) Delete(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return HandleError(h.logger, c, apperrors.ErrUnauthenticated())
	}

	id, err := parseCallID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.svc.Delete(c.Request().Context(), principal, id); err != nil {
		return HandleError(h.logger, c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func parseCallID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.ErrInvalidArgument("invalid call id")
	}
	return id, nil
}
