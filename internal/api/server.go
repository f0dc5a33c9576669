// Package api exposes the warehouse-facing HTTP surface: pick requests,
// basket status, history, administrative resets and a WebSocket stream of
// the crane's status feed. It is a thin translation layer over the store
// and the status channel; it never talks to the PLC directly.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/siamwms/asrsd/internal/store"
)

// MoverControl is the slice of the mover the reset endpoint needs.
type MoverControl interface {
	ResetCommand(ctx context.Context) error
}

// ScannerControl is the slice of the QR listener the reset endpoint needs.
type ScannerControl interface {
	ResetState()
}

// Server wires the HTTP handlers to their collaborators. Mover and scanner
// may be nil (e.g. in import tooling); the reset endpoint reports what it
// could not reach.
type Server struct {
	store    *store.Store
	mover    MoverControl
	scanner  ScannerControl
	rdb      *redis.Client
	instance string
	upgrader websocket.Upgrader
}

// NewServer builds the handler set.
func NewServer(st *store.Store, mover MoverControl, scanner ScannerControl, rdb *redis.Client, instance string) *Server {
	return &Server{
		store:    st,
		mover:    mover,
		scanner:  scanner,
		rdb:      rdb,
		instance: instance,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	wms := r.Group("/wms")
	{
		wms.POST("/pick", s.handlePick)
		wms.POST("/pick/:number", s.handlePickByNumber)
		wms.GET("/status/basket/:basket", s.handleBasketStatus)
		wms.GET("/normalize/:value", s.handleNormalize)
		wms.GET("/history", s.handleHistory)
		wms.POST("/reset/queue", s.handleResetQueue)
		wms.POST("/reset/system", s.handleResetSystem)
	}
	r.GET("/ws/status/system", s.handleStatusSocket)

	return r
}
