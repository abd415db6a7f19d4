// Package handlers exposes the blue-team, red-team and quantum engines over
// the JSON API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qsec/internal/blueteam"
	"qsec/internal/middleware"
	"qsec/internal/models"
	"qsec/internal/quantum"
	"qsec/internal/redteam"
	"qsec/internal/utils"
	"qsec/internal/version"
)

// Event types pushed to websocket clients.
const (
	EventLog         = "log"
	EventRemediation = "remediation"
	EventAttack      = "attack"
)

const bannerMessage = "Quantum Cyber Security Backend Online"

// Publisher receives live events; *middleware.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Handlers bundles the engines the routes operate on.
type Handlers struct {
	monitor   *blueteam.Monitor
	scanner   *redteam.Scanner
	simulator *redteam.Simulator
	quantum   *quantum.Engine
	auth      *middleware.AuthService
	events    Publisher
	log       *utils.Logger
}

// New wires handlers to their engines. events may be nil.
func New(monitor *blueteam.Monitor, scanner *redteam.Scanner, engine *quantum.Engine, auth *middleware.AuthService, events Publisher, log *utils.Logger) *Handlers {
	return &Handlers{
		monitor:   monitor,
		scanner:   scanner,
		simulator: redteam.NewSimulator(monitor),
		quantum:   engine,
		auth:      auth,
		events:    events,
		log:       log,
	}
}

// Register mounts every route on r. Mutating routes sit behind the API auth
// middleware, which is a pass-through when auth is disabled.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/healthz", h.Health)
	r.GET("/version", h.Version)

	api := r.Group("/api")
	api.POST("/login", h.Login)

	blue := api.Group("/blue")
	blue.GET("/stats", h.BlueStats)
	blue.GET("/logs", h.BlueLogs)
	blue.POST("/remediate", h.auth.RequireAPIAuth(), h.BlueRemediate)

	red := api.Group("/red")
	red.Use(h.auth.RequireAPIAuth())
	red.GET("/scan", h.RedScanQuery)
	red.POST("/scan", h.RedScan)
	red.POST("/simulate", h.RedSimulate)

	q := api.Group("/quantum")
	q.GET("/grover", h.QuantumGrover)
	q.GET("/entropy", h.QuantumEntropy)
}

func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   bannerMessage,
		"timestamp": models.Epoch(time.Now()),
	})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func (h *Handlers) publish(eventType string, data any) {
	if h.events != nil {
		h.events.Publish(eventType, data)
	}
}
