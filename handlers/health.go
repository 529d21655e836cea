package handlers

import (
	"net/http"

	"coursebook/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the last dependency snapshot taken by the health monitor.
func HealthCheck(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	state := "ok"
	if !status.Mongo || !status.Redis {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(code, gin.H{"status": state, "services": status})
}
