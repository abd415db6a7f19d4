package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qsec/internal/middleware"
	"qsec/internal/models"
	"qsec/internal/redteam"
)

// RedScan runs a TCP connect scan described by the JSON body.
func (h *Handlers) RedScan(c *gin.Context) {
	var req models.ScanRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	h.scan(c, req)
}

// RedScanQuery is the GET form: /red/scan?target=10.0.0.1&ports=22,80-90.
func (h *Handlers) RedScanQuery(c *gin.Context) {
	ports, err := redteam.ParsePorts(c.Query("ports"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req := models.ScanRequest{
		TargetIP: middleware.SanitizeString(c.Query("target")),
		Ports:    ports,
	}
	if err := middleware.ValidateStruct(req); err != nil {
		middleware.AbortValidation(c, err)
		return
	}
	h.scan(c, req)
}

func (h *Handlers) scan(c *gin.Context, req models.ScanRequest) {
	target := middleware.SanitizeString(req.TargetIP)
	results, err := h.scanner.Scan(c.Request.Context(), target, req.Ports)
	if err != nil {
		switch {
		case errors.Is(err, redteam.ErrInvalidTarget), errors.Is(err, redteam.ErrInvalidPort), errors.Is(err, redteam.ErrTooManyPorts):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Writef("Scan of %s failed: %v", target, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan failed"})
		}
		return
	}
	h.log.Writef("Scanned %s: %d ports", target, len(results))
	c.JSON(http.StatusOK, results)
}

// RedSimulate runs a canned attack and reports it to the blue-team feed.
func (h *Handlers) RedSimulate(c *gin.Context) {
	var req models.SimulationRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	attack := models.AttackType(middleware.SanitizeString(string(req.AttackType)))
	result := h.simulator.Simulate(attack)
	h.publish(EventAttack, result)
	c.JSON(http.StatusOK, result)
}
