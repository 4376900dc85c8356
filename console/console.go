package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"posecam/detection"
	"posecam/dispatch"
	"posecam/orders"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Global debug function for console package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, ids ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, ids...)
	}
}

// Controller is the part of the dispatch loop the console drives
type Controller interface {
	Submit(cmd dispatch.Command) bool
	Mode() dispatch.Mode
	WatchState() orders.State
	LastDetection() *detection.Detection
	LastEvent() *dispatch.SendEvent
	Events() <-chan dispatch.SendEvent
}

// Server is the operator console: status, controls and a live event feed
type Server struct {
	ctl      Controller
	history  func() []string
	hub      *hub
	upgrader websocket.Upgrader
	router   *gin.Engine
	server   *http.Server
}

// NewServer builds the router. history may be nil.
func NewServer(ctl Controller, history func() []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		ctl:     ctl,
		history: history,
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", s.handleStatus)
	r.POST("/control/:action", s.handleControl)
	r.GET("/events", s.handleEvents)
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr in the background and pumps loop events to clients
// until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		debugMsg("CONSOLE", fmt.Sprintf("Operator console listening on %s", addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debugMsg("CONSOLE_ERROR", fmt.Sprintf("Console server stopped: %v", err))
		}
	}()
	go s.pump(ctx)
}

// Shutdown stops the HTTP server and disconnects event clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) pump(ctx context.Context) {
	events := s.ctl.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.hub.broadcast(ev)
		}
	}
}

type detectionView struct {
	CenterX     int     `json:"center_x"`
	CenterY     int     `json:"center_y"`
	AngleDeg    float64 `json:"angle_deg"`
	PixelLength float64 `json:"pixel_length"`
	Area        float64 `json:"area"`
	DistanceMM  float64 `json:"distance_mm"`
}

type statusResponse struct {
	Mode          string              `json:"mode"`
	Armed         bool                `json:"armed"`
	TargetID      string              `json:"target_id,omitempty"`
	Zone          *int                `json:"zone,omitempty"`
	LastDetection *detectionView      `json:"last_detection,omitempty"`
	LastSend      *dispatch.SendEvent `json:"last_send,omitempty"`
	Log           []string            `json:"log,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.ctl.WatchState()
	resp := statusResponse{
		Mode:     s.ctl.Mode().String(),
		Armed:    st.Armed,
		TargetID: st.TargetID,
		Zone:     st.ZoneID,
		LastSend: s.ctl.LastEvent(),
	}
	if d := s.ctl.LastDetection(); d != nil {
		resp.LastDetection = &detectionView{
			CenterX:     d.Center.X,
			CenterY:     d.Center.Y,
			AngleDeg:    d.AngleDeg,
			PixelLength: d.PixelLength,
			Area:        d.Area,
			DistanceMM:  d.DistanceMM,
		}
	}
	if s.history != nil {
		resp.Log = s.history()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleControl(c *gin.Context) {
	action := c.Param("action")
	cmd, ok := dispatch.ParseCommand(action)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "unknown action: " + action})
		return
	}
	if !s.ctl.Submit(cmd) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "command queue full"})
		return
	}
	debugMsg("CONSOLE", fmt.Sprintf("Queued %s from %s", cmd, c.ClientIP()))
	c.JSON(http.StatusAccepted, gin.H{"success": true, "command": cmd.String()})
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		debugMsg("CONSOLE_WARN", fmt.Sprintf("Websocket upgrade failed: %v", err))
		return
	}
	cl := s.hub.add(conn)
	go s.hub.writePump(cl)
	go s.hub.readPump(cl)
}
