package handlers

import (
	"net/http"

	"roomrental/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the latest backing store snapshot. Mongo is required;
// Redis is reported but optional.
func HealthHandler(monitor *utils.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := monitor.Status()
		if status.CheckedAt.IsZero() {
			status = monitor.Check(c.Request.Context())
		}
		code := http.StatusOK
		state := "ok"
		if !status.Mongo {
			code = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(code, gin.H{"status": state, "services": status})
	}
}
