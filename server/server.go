package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hubertat/pinkit"
)

const httpTimeoutsMs = 10000
const liveKeepalive = 15 * time.Second

//go:embed dashboard.html
var dashboardFs embed.FS

// Controller is the slice of the dispatcher the http surface needs.
type Controller interface {
	SetPin(ctx context.Context, pin pinkit.PinID, value bool) pinkit.Result
	SetAll(ctx context.Context, value bool) []pinkit.Result
	Status() pinkit.Snapshot
}

// ChatAgent answers a free text message, nil when no llm configured.
type ChatAgent interface {
	Run(ctx context.Context, message string) (string, error)
}

type Server struct {
	Addr string

	controller Controller
	chat       ChatAgent
	logger     *log.Logger
	dashboard  *template.Template
	httpServer *http.Server

	mu      sync.Mutex
	wakeups map[chan struct{}]struct{}
}

func New(addr string, controller Controller, chat ChatAgent, logger *log.Logger) (*Server, error) {
	dashboard, err := template.ParseFS(dashboardFs, "dashboard.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse dashboard template")
	}

	srv := &Server{
		Addr:       addr,
		controller: controller,
		chat:       chat,
		logger:     logger,
		dashboard:  dashboard,
		wakeups:    make(map[chan struct{}]struct{}),
	}

	router := httprouter.New()
	router.GET("/", srv.handleDashboard)
	router.GET("/api/status", srv.handleStatus)
	router.PUT("/api/pins/:pin", srv.handleSetPin)
	router.PUT("/api/pins", srv.handleSetAll)
	router.POST("/api/chat", srv.handleChat)
	router.GET("/api/live", srv.handleLive)

	httpTimeout := httpTimeoutsMs * time.Millisecond
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	return srv, nil
}

// Run serves until ctx is cancelled.
func (srv *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.httpServer.ListenAndServe()
	}()

	srv.logger.Info("http server listening", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return errors.Wrap(err, "http server failed")
	}
}

// Broadcast wakes all live websocket clients; wire it as a store
// change listener.
func (srv *Server) Broadcast() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for wake := range srv.wakeups {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (srv *Server) writeJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		srv.logger.Warn("failed to write response", "err", err)
	}
}

type setRequest struct {
	Value bool `json:"value"`
}

type pinResult struct {
	Pin     pinkit.PinID `json:"pin"`
	Value   bool         `json:"value"`
	Ok      bool         `json:"ok"`
	Warning string       `json:"warning,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func toPinResult(result pinkit.Result) pinResult {
	out := pinResult{
		Pin:     result.Pin,
		Value:   result.Value,
		Ok:      result.Ok,
		Warning: result.Warning,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out
}

func (srv *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := srv.controller.Status()
	err := srv.dashboard.Execute(w, map[string]any{
		"Pins":        pinkit.Pins(),
		"Snapshot":    snap,
		"ChatEnabled": srv.chat != nil,
	})
	if err != nil {
		srv.logger.Warn("failed to render dashboard", "err", err)
	}
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	srv.writeJson(w, http.StatusOK, srv.controller.Status())
}

func (srv *Server) handleSetPin(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := setRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := srv.controller.SetPin(r.Context(), pinkit.PinID(params.ByName("pin")), req.Value)
	switch {
	case errors.Is(result.Err, pinkit.ErrInvalidPin):
		srv.writeJson(w, http.StatusNotFound, toPinResult(result))
	case result.Err != nil:
		srv.writeJson(w, http.StatusBadGateway, toPinResult(result))
	default:
		srv.writeJson(w, http.StatusOK, toPinResult(result))
	}
}

func (srv *Server) handleSetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := setRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	results := srv.controller.SetAll(r.Context(), req.Value)
	out := make([]pinResult, 0, len(results))
	for _, result := range results {
		out = append(out, toPinResult(result))
	}
	srv.writeJson(w, http.StatusOK, out)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (srv *Server) handleChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if srv.chat == nil {
		http.Error(w, "chat agent not configured", http.StatusNotImplemented)
		return
	}

	req := chatRequest{}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || len(req.Message) == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := srv.chat.Run(r.Context(), req.Message)
	if err != nil {
		srv.logger.Warn("chat agent failed", "err", err)
		http.Error(w, "agent failed to answer", http.StatusBadGateway)
		return
	}

	srv.writeJson(w, http.StatusOK, chatResponse{Reply: reply})
}

func (srv *Server) handleLive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		srv.logger.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	wake := make(chan struct{}, 1)
	srv.mu.Lock()
	srv.wakeups[wake] = struct{}{}
	srv.mu.Unlock()
	defer func() {
		srv.mu.Lock()
		delete(srv.wakeups, wake)
		srv.mu.Unlock()
	}()

	keepalive := time.NewTicker(liveKeepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		err = wsjson.Write(ctx, conn, srv.controller.Status())
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-keepalive.C:
		}
	}
}
