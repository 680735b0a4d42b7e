package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	integrationDelivery "tradework-backend/internal/integration/delivery"
	integrationUsecase "tradework-backend/internal/integration/usecase"
	mailDelivery "tradework-backend/internal/mail/delivery"
	mailUsecase "tradework-backend/internal/mail/usecase"
	"tradework-backend/pkg/config"
)

type Handler struct {
	mailHandler        *mailDelivery.MailHandler
	integrationHandler *integrationDelivery.IntegrationHandler
	config             *config.Config
}

func NewHandler(mailUc mailUsecase.MailUsecase, integrationUc integrationUsecase.IntegrationUsecase, cfg *config.Config) *Handler {
	return &Handler{
		mailHandler:        mailDelivery.NewMailHandler(mailUc),
		integrationHandler: integrationDelivery.NewIntegrationHandler(integrationUc, cfg.AppBaseURL),
		config:             cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.mailHandler, h.integrationHandler, h.config)

	return r.Run(addr)
}
