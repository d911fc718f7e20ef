// Package web exposes the catalog and chat flows over HTTP. The chat
// page speaks a websocket: each client frame runs one input cycle and
// assistant fragments stream back as the model produces them.
package web

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/streamersales/goCollectionAgent/business/orchestrator"
	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/config"
	"github.com/streamersales/goCollectionAgent/foundation/external/asr"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"go.uber.org/zap"
)

type Settings struct {
	Logger       *zap.SugaredLogger
	Catalog      *catalog.Store
	Conversation config.Conversation
	Sessions     *session.Store
	Orchestrator *orchestrator.Orchestrator
	Broker       *pubsub.Broker
	Asr          *asr.Client

	// SystemPrompt is the rendered persona prompt new sessions start with.
	SystemPrompt string

	// Toggle defaults for new sessions.
	EnableTts          bool
	EnableDigitalHuman bool
	EnableAgent        bool
	EnableRag          bool

	ImageDirectory       string
	InstructionDirectory string
	AsrDirectory         string
	DisableUpload        bool
}

// New builds the configured echo instance.
func New(s Settings) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := &handlers{s: s}

	e.GET("/healthz", h.health)

	e.GET("/api/products", h.listProducts)
	e.POST("/api/products", h.addProduct)
	e.GET("/api/quick-replies", h.listQuickReplies)

	e.POST("/api/sessions", h.createSession)
	e.DELETE("/api/sessions/:id", h.deleteSession)
	e.POST("/api/sessions/:id/select", h.selectItem)
	e.POST("/api/sessions/:id/reset", h.resetConversation)
	e.POST("/api/sessions/:id/back", h.backToProducts)
	e.POST("/api/sessions/:id/quick-reply", h.queueQuickReply)
	e.POST("/api/sessions/:id/toggles", h.setToggle)
	e.POST("/api/sessions/:id/asr", h.transcribe)
	e.GET("/api/sessions/:id/transcript", h.transcript)
	e.GET("/api/sessions/:id/chat", h.chat)

	return e
}
