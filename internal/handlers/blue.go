package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qsec/internal/middleware"
	"qsec/internal/models"
)

// BlueStats samples host telemetry.
func (h *Handlers) BlueStats(c *gin.Context) {
	sample, err := h.monitor.Stats(c.Request.Context())
	if err != nil {
		h.log.Writef("Blue stats error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read system stats"})
		return
	}
	c.JSON(http.StatusOK, sample)
}

// BlueLogs serves the next feed entry, or null when there is none.
func (h *Handlers) BlueLogs(c *gin.Context) {
	entry, ok := h.monitor.NextLog()
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// BlueRemediate applies the patch for the requested attack type.
func (h *Handlers) BlueRemediate(c *gin.Context) {
	var req models.RemediationRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	attack := models.AttackType(middleware.SanitizeString(string(req.AttackType)))
	ack, err := h.monitor.Remediate(c.Request.Context(), attack)
	if err != nil {
		h.log.Writef("Remediation %s failed: %v", attack, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Remediation failed"})
		return
	}
	h.publish(EventRemediation, ack)
	c.JSON(http.StatusOK, ack)
}
