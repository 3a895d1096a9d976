package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminCasesHandler lists every case with its owner's email
func (h *Handler) AdminCasesHandler(c echo.Context) error {
	cases, err := h.Cases.ListAllCases(c.Request().Context())
	if err != nil {
		h.Log.Error("failed to load admin cases", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to load cases")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cases":    cases,
		"statuses": models.CaseStatuses,
	})
}

// AdminUpdateCaseStatusHandler overrides a case's lifecycle status
func (h *Handler) AdminUpdateCaseStatusHandler(c echo.Context) error {
	caseID := c.FormValue("caseId")
	if caseID == "" {
		return jsonError(c, http.StatusBadRequest, "Missing case identifier")
	}

	status, err := services.ParseStatus(c.FormValue("status"))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid status value")
	}

	if err := h.Cases.UpdateStatus(c.Request().Context(), caseID, status); err != nil {
		if errors.Is(err, services.ErrCaseNotFound) {
			return jsonError(c, http.StatusNotFound, "Case not found")
		}
		h.Log.Error("failed to update case status", zap.String("case_id", caseID), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to update case")
	}

	h.Log.Info("case status updated",
		zap.String("case_id", caseID),
		zap.String("status", string(status)),
		zap.String("admin", currentUser(c).Email),
	)
	return c.JSON(http.StatusOK, map[string]string{"id": caseID, "status": string(status)})
}

// AdminExportCSVHandler downloads all cases as CSV
func (h *Handler) AdminExportCSVHandler(c echo.Context) error {
	cases, err := h.Cases.ListAllCases(c.Request().Context())
	if err != nil {
		h.Log.Error("failed to load cases for export", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to export cases")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, attachment(services.ExportFileName(h.now(), "csv")))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", services.BuildCaseCSV(cases, requestOrigin(c)))
}

// AdminExportXLSXHandler downloads all cases as an Excel workbook
func (h *Handler) AdminExportXLSXHandler(c echo.Context) error {
	cases, err := h.Cases.ListAllCases(c.Request().Context())
	if err != nil {
		h.Log.Error("failed to load cases for export", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to export cases")
	}

	buf, err := services.BuildCaseWorkbook(cases, requestOrigin(c))
	if err != nil {
		h.Log.Error("failed to build case workbook", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to export cases")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, attachment(services.ExportFileName(h.now(), "xlsx")))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
