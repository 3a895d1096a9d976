package handlers

import (
	"net/http"
	"time"

	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type dashboardScreenshot struct {
	Key         string `json:"key"`
	DownloadURL string `json:"downloadUrl"`
}

type dashboardCase struct {
	ID             string                `json:"id"`
	CaseNumber     string                `json:"caseNumber"`
	Status         models.CaseStatus     `json:"status"`
	StatusLabel    string                `json:"statusLabel"`
	Progress       int                   `json:"progress"`
	PaymentStatus  models.PaymentStatus  `json:"paymentStatus"`
	TargetPlatform string                `json:"targetPlatform"`
	PlatformLink   string                `json:"platformLink,omitempty"`
	Description    string                `json:"description"`
	Screenshots    []dashboardScreenshot `json:"screenshots"`
	CreatedAt      time.Time             `json:"createdAt"`
}

func toDashboardCase(record models.Case) dashboardCase {
	screenshots := make([]dashboardScreenshot, 0, len(record.ScreenshotKeys))
	for _, key := range record.ScreenshotKeys {
		screenshots = append(screenshots, dashboardScreenshot{
			Key:         key,
			DownloadURL: services.ScreenshotDownloadPath(record.ID, key),
		})
	}
	return dashboardCase{
		ID:             record.ID,
		CaseNumber:     record.CaseNumber,
		Status:         record.Status,
		StatusLabel:    record.Status.Label(),
		Progress:       record.Status.Rank(),
		PaymentStatus:  record.PaymentStatus,
		TargetPlatform: record.TargetPlatform,
		PlatformLink:   record.PlatformLink(),
		Description:    record.Description,
		Screenshots:    screenshots,
		CreatedAt:      record.CreatedAt,
	}
}

// DashboardHandler lists the signed-in user's cases, newest first
func (h *Handler) DashboardHandler(c echo.Context) error {
	user := currentUser(c)
	records, err := h.Cases.ListCasesForUser(c.Request().Context(), user.ID)
	if err != nil {
		h.Log.Error("failed to load dashboard cases", zap.String("user_id", user.ID), zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "Unable to load your cases")
	}

	cases := make([]dashboardCase, 0, len(records))
	for _, record := range records {
		cases = append(cases, toDashboardCase(record))
	}

	caseCreated := c.QueryParam("caseCreated") == "1"
	response := map[string]interface{}{
		"user":        map[string]string{"name": user.Name, "email": user.Email},
		"cases":       cases,
		"caseCreated": caseCreated,
		"csrfToken":   middleware.GetCSRFToken(c),
	}
	if caseCreated {
		response["caseId"] = c.QueryParam("caseId")
		response["caseNumber"] = c.QueryParam("caseNumber")
	}
	return c.JSON(http.StatusOK, response)
}
