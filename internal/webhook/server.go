// Package webhook exposes the HTTP surface: the gateway's payment
// notifications and a health endpoint.
package webhook

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plaza-bot/internal/coordinator"
	"plaza-bot/internal/payment"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *gin.Engine
	server *http.Server
	coord  *coordinator.Coordinator
}

func NewServer(addr string, coord *coordinator.Coordinator, allowedCIDRs []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		coord:  coord,
		server: &http.Server{Addr: addr, Handler: router},
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.POST("/webhook/yookassa", allowlistMiddleware(allowedCIDRs), s.handleYookassa)

	return s
}

func (s *Server) Start() error {
	log.Printf("Webhook server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleYookassa(c *gin.Context) {
	var notification payment.WebhookNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		log.Printf("Failed to decode webhook: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	if notification.Event != "payment.succeeded" {
		log.Printf("Ignored webhook event: %s", notification.Event)
		c.Status(http.StatusOK)
		return
	}

	if _, err := s.coord.HandlePaymentConfirmed(c.Request.Context(), notification.Object.ID); err != nil {
		// The paid transition is already committed; answer 200 so the
		// gateway stops retrying, and leave remediation to the report.
		log.Printf("Failed to process charge %s: %v", notification.Object.ID, err)
	}
	c.Status(http.StatusOK)
}

// allowlistMiddleware rejects callers outside the gateway's published
// subnets.
func allowlistMiddleware(allowedCIDRs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAllowedIP(c.ClientIP(), allowedCIDRs) {
			log.Printf("Webhook call from unexpected address %s rejected", c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// isAllowedIP checks whether the address falls into one of the allowed
// CIDR blocks.
func isAllowedIP(ip string, allowedCIDRs []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	for _, cidr := range allowedCIDRs {
		_, netblock, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if netblock.Contains(parsed) {
			return true
		}
	}
	return false
}
