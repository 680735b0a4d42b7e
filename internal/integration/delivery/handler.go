package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradework-backend/internal/integration/domain"
	"tradework-backend/internal/integration/dto"
	"tradework-backend/internal/integration/usecase"
)

type IntegrationHandler struct {
	integrationUsecase usecase.IntegrationUsecase
	appBaseURL         string
}

func NewIntegrationHandler(integrationUsecase usecase.IntegrationUsecase, appBaseURL string) *IntegrationHandler {
	return &IntegrationHandler{
		integrationUsecase: integrationUsecase,
		appBaseURL:         appBaseURL,
	}
}

// GetStatus handles GET /integrations/email.
func (h *IntegrationHandler) GetStatus(c *gin.Context) {
	userID := c.GetString("userID")

	statuses, err := h.integrationUsecase.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": statuses})
}

// ConnectSMTP handles POST /integrations/email/smtp.
func (h *IntegrationHandler) ConnectSMTP(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.ConnectSMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.integrationUsecase.ConnectSMTP(c.Request.Context(), userID, &req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusConnected})
}

// DisconnectSMTP handles DELETE /integrations/email/smtp.
func (h *IntegrationHandler) DisconnectSMTP(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.integrationUsecase.DisconnectSMTP(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusDisconnected})
}

// ConnectOutlook handles GET /integrations/email/outlook/connect.
func (h *IntegrationHandler) ConnectOutlook(c *gin.Context) {
	userID := c.GetString("userID")

	url, err := h.integrationUsecase.OutlookAuthURL(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.AuthURLResponse{URL: url})
}

// OutlookCallback handles GET /integrations/email/outlook/callback. The
// provider redirects the browser here, so errors redirect back into the
// app rather than rendering JSON.
func (h *IntegrationHandler) OutlookCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.redirectToSettings(c, "outlook", errParam)
		return
	}

	err := h.integrationUsecase.HandleOutlookCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	switch {
	case errors.Is(err, domain.ErrStateInvalid):
		h.redirectToSettings(c, "outlook", "invalid_state")
	case err != nil:
		h.redirectToSettings(c, "outlook", "connect_failed")
	default:
		h.redirectToSettings(c, "outlook", "")
	}
}

// DisconnectOutlook handles DELETE /integrations/email/outlook.
func (h *IntegrationHandler) DisconnectOutlook(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.integrationUsecase.DisconnectOutlook(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusDisconnected})
}

// ConnectGmail handles GET /integrations/email/gmail/connect.
func (h *IntegrationHandler) ConnectGmail(c *gin.Context) {
	userID := c.GetString("userID")

	url, err := h.integrationUsecase.GmailConnectURL(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.AuthURLResponse{URL: url})
}

// GmailCallback handles GET /integrations/email/gmail/callback.
func (h *IntegrationHandler) GmailCallback(c *gin.Context) {
	err := h.integrationUsecase.HandleGmailCallback(c.Request.Context(), c.Query("state"))
	switch {
	case errors.Is(err, domain.ErrStateInvalid):
		h.redirectToSettings(c, "gmail", "invalid_state")
	case err != nil:
		h.redirectToSettings(c, "gmail", "connect_failed")
	default:
		h.redirectToSettings(c, "gmail", "")
	}
}

// DisconnectGmail handles DELETE /integrations/email/gmail.
func (h *IntegrationHandler) DisconnectGmail(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.integrationUsecase.DisconnectGmail(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusDisconnected})
}

func (h *IntegrationHandler) redirectToSettings(c *gin.Context, provider, errCode string) {
	target := h.appBaseURL + "/settings/email?provider=" + provider
	if errCode != "" {
		target += "&error=" + errCode
	} else {
		target += "&connected=true"
	}
	c.Redirect(http.StatusFound, target)
}
