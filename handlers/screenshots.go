package handlers

import (
	"errors"
	"net/http"

	"takedown_app_go/middleware"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UploadScreenshotHandler stores one evidence image and returns its key for
// the intake form's screenshotFileKeys field.
func (h *Handler) UploadScreenshotHandler(c echo.Context) error {
	user := currentUser(c)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "No file uploaded")
	}

	result, err := services.StoreScreenshot(c.Request().Context(), h.Storage, fileHeader)
	if err != nil {
		if errors.Is(err, services.ErrInvalidUpload) {
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
		h.Log.Error("screenshot upload failed", zap.String("user_id", user.ID), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to upload screenshot")
	}

	h.Log.Info("screenshot uploaded", zap.String("user_id", user.ID), zap.String("key", result.Key))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"key":      result.Key,
		"fileName": result.FileName,
		"size":     result.FileSize,
		"mimeType": result.MimeType,
	})
}

// DownloadScreenshotHandler serves a case screenshot to its owner or an admin.
// Signed URLs are preferred; storage without them is streamed.
func (h *Handler) DownloadScreenshotHandler(c echo.Context) error {
	caseID := c.QueryParam("caseId")
	key := services.NormalizeStorageKey(c.QueryParam("fileKey"))
	if caseID == "" || key == "" {
		return jsonError(c, http.StatusBadRequest, "Missing case or file reference.")
	}

	ctx := c.Request().Context()
	record, err := h.Cases.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, services.ErrCaseNotFound) {
			return jsonError(c, http.StatusNotFound, "Screenshot not found")
		}
		h.Log.Error("failed to load case for screenshot", zap.String("case_id", caseID), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to load screenshot")
	}

	user := middleware.GetCurrentUser(c)
	allowed := user != nil && (record.UserID == user.ID || services.IsAdmin(user.Email, h.Config.AdminEmails))
	if !allowed || !record.HasScreenshot(key) {
		return jsonError(c, http.StatusNotFound, "Screenshot not found")
	}

	signedURL, err := h.Storage.GetSignedURL(ctx, key, services.ScreenshotURLExpiry)
	if err == nil {
		return c.Redirect(http.StatusFound, signedURL)
	}
	if !errors.Is(err, services.ErrSignedURLUnsupported) {
		h.Log.Error("failed to sign screenshot url", zap.String("case_id", caseID), zap.String("key", key), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to load screenshot")
	}

	reader, contentType, err := h.Storage.Get(ctx, key)
	if err != nil {
		h.Log.Error("failed to read screenshot", zap.String("case_id", caseID), zap.String("key", key), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to load screenshot")
	}
	defer reader.Close()

	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Stream(http.StatusOK, contentType, reader)
}
