package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authDelivery "tradework-backend/internal/auth/delivery"
	integrationDelivery "tradework-backend/internal/integration/delivery"
	mailDelivery "tradework-backend/internal/mail/delivery"
	"tradework-backend/pkg/config"
)

func SetupRoutes(r *gin.Engine, mailHandler *mailDelivery.MailHandler, integrationHandler *integrationDelivery.IntegrationHandler, cfg *config.Config) {
	requireAuth := authDelivery.AuthMiddleware(cfg.JWTSecret)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Email sending routes (protected)
		mail := api.Group("/mail")
		mail.Use(requireAuth)
		{
			mail.POST("/send", mailHandler.SendEmail)
			mail.GET("/logs", mailHandler.GetDeliveryLogs)
		}

		// Integration management routes
		integrations := api.Group("/integrations/email")
		{
			// OAuth providers redirect the browser here; the state token
			// carries the user identity, so these stay unauthenticated.
			integrations.GET("/outlook/callback", integrationHandler.OutlookCallback)
			integrations.GET("/gmail/callback", integrationHandler.GmailCallback)

			protected := integrations.Group("")
			protected.Use(requireAuth)
			{
				protected.GET("", integrationHandler.GetStatus)
				protected.POST("/smtp", integrationHandler.ConnectSMTP)
				protected.DELETE("/smtp", integrationHandler.DisconnectSMTP)
				protected.GET("/outlook/connect", integrationHandler.ConnectOutlook)
				protected.DELETE("/outlook", integrationHandler.DisconnectOutlook)
				protected.GET("/gmail/connect", integrationHandler.ConnectGmail)
				protected.DELETE("/gmail", integrationHandler.DisconnectGmail)
			}
		}
	}
}
