package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qsec/internal/models"
	"qsec/internal/quantum"
)

// QuantumGrover runs the simulated Grover search: /quantum/grover?qubits=3.
func (h *Handlers) QuantumGrover(c *gin.Context) {
	qubits := quantum.DefaultQubits
	if raw := c.Query("qubits"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "qubits must be an integer"})
			return
		}
		qubits = n
	}
	res, err := h.quantum.Grover(qubits, "")
	if err != nil {
		if errors.Is(err, quantum.ErrTooManyQubits) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Too many qubits for simulation",
				"max_qubits": h.quantum.MaxQubits(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// QuantumEntropy returns a fresh entropy score.
func (h *Handlers) QuantumEntropy(c *gin.Context) {
	c.JSON(http.StatusOK, models.EntropyResult{EntropyScore: h.quantum.Entropy()})
}
