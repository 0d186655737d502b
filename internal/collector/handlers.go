package collector

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

func (s *Server) handleAgentData(c *gin.Context) {
	requestID := c.GetHeader(api.HeaderRequestID)

	var data api.AgentData
	if err := c.ShouldBindJSON(&data); err != nil {
		s.metrics.rejected.WithLabelValues(reasonInvalidJSON).Inc()
		log.Error("invalid JSON received",
			logging.KeyRequestID, requestID,
			"remote", c.ClientIP(),
			logging.KeyError, err,
		)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid JSON data"})
		return
	}

	n := s.received.Add(1)
	s.metrics.received.Inc()
	s.metrics.items.Observe(float64(len(data.SoftwareList)))
	logReport(&data, requestID, n)

	c.JSON(http.StatusOK, api.Ack{
		Status:            "success",
		Message:           "Agent data received successfully",
		ReceivedTimestamp: s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:          "healthy",
		ReceivedReports: s.received.Load(),
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, api.RootResponse{
		Message:  "System Inventory Server is running",
		Endpoint: "POST " + api.DataPath,
	})
}
