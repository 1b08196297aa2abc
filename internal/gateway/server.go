// Package gateway is the connection layer: it authenticates observers via
// a short-lived connection code, relays their commands into the supervisor
// and ledger, and broadcasts every resulting notification to all clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentden/agentden/internal/api"
	"github.com/agentden/agentden/internal/config"
	"github.com/agentden/agentden/internal/model"
	"github.com/agentden/agentden/internal/quest"
	"github.com/agentden/agentden/internal/supervisor"
)

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	hub    *Hub
	sup    *supervisor.Supervisor
	ledger *quest.Ledger
	codes  *codeIssuer

	httpSrv  *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
}

func NewServer(cfg config.Config, log *zap.Logger, hub *Hub, sup *supervisor.Supervisor, ledger *quest.Ledger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log,
		hub:    hub,
		sup:    sup,
		ledger: ledger,
		codes:  newCodeIssuer(cfg.CodeTTL),
		upgrader: websocket.Upgrader{
			// Remote observers connect from app webviews; origin carries
			// no trust here, the connection code does.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.healthHandler)
	mux.HandleFunc("/ws", s.wsHandler)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("gateway serve", zap.Error(err))
		}
	}()
	s.log.Info("gateway listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the bound listen address, useful when the configured port
// was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.ListenAddr
	}
	return s.listener.Addr().String()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"agents":  len(s.sup.List()),
	})
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	// Permissive default: no code means authenticated; a wrong or expired
	// code flags the connection but does not close it.
	c.setAuthenticated(s.codes.Validate(r.URL.Query().Get("code")))
	s.hub.register(c)
	go c.writePump()
	s.readLoop(c)
	s.hub.unregister(c)
}

func (s *Server) readLoop(c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd api.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.respond(c, errorResponse("", model.ErrCodeBadRequest, "malformed command frame"))
			continue
		}
		s.respond(c, s.dispatch(c, cmd))
	}
}

func (s *Server) respond(c *client, resp api.Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response", zap.Error(err))
		return
	}
	if !c.enqueueWait(raw, writeWait) {
		s.log.Error("dropping command response for stalled client", zap.String("cmd_id", resp.ID))
	}
}

// dispatch executes one command and builds the response for the
// originating client. Broadcast side effects flow through the hub.
func (s *Server) dispatch(c *client, cmd api.Command) api.Response {
	if cmd.Cmd == api.CmdAuthenticate {
		return s.handleAuthenticate(c, cmd)
	}
	if !c.isAuthenticated() {
		return errorResponse(cmd.ID, model.ErrCodeAuthFailed, "connection is not authenticated")
	}

	switch cmd.Cmd {
	case api.CmdSpawn:
		var req api.SpawnRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad spawn payload")
		}
		snap, err := s.sup.Spawn(context.Background(), req.Name, req.Class, req.WorkingDirectory, req.InitialTask)
		if err != nil {
			return errorFor(cmd.ID, err)
		}
		return okResponse(cmd.ID, snap)

	case api.CmdSendInput:
		var req api.SendInputRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad send_input payload")
		}
		if err := s.sup.SendInput(req.AgentID, req.Text); err != nil {
			return errorFor(cmd.ID, err)
		}
		return okResponse(cmd.ID, nil)

	case api.CmdKill:
		var req api.KillRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad kill payload")
		}
		if err := s.sup.Kill(req.AgentID); err != nil {
			return errorFor(cmd.ID, err)
		}
		return okResponse(cmd.ID, nil)

	case api.CmdResize:
		var req api.ResizeRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad resize payload")
		}
		if req.Cols <= 0 || req.Rows <= 0 {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "cols and rows must be positive")
		}
		if err := s.sup.Resize(req.AgentID, req.Cols, req.Rows); err != nil {
			return errorFor(cmd.ID, err)
		}
		return okResponse(cmd.ID, nil)

	case api.CmdListAgents:
		return okResponse(cmd.ID, s.sup.List())

	case api.CmdReviewQuest:
		var req api.ReviewQuestRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad review_quest payload")
		}
		action := model.ReviewAction(req.Action)
		if action != model.ReviewAccept && action != model.ReviewRevise {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "action must be accept or revise")
		}
		if err := s.ledger.Review(context.Background(), req.QuestID, action, req.Note); err != nil {
			return errorFor(cmd.ID, err)
		}
		return okResponse(cmd.ID, nil)

	case api.CmdGetConnectionCode:
		code, expiresAt, err := s.codes.Current()
		if err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, err.Error())
		}
		return okResponse(cmd.ID, api.ConnectionCodeResponse{
			Code:      code,
			ExpiresAt: api.TS(expiresAt),
			URL:       s.advertisedURL(),
		})

	case api.CmdGetMachineInfo:
		return okResponse(cmd.ID, machineInfo(s.cfg.WorkspaceRoots))

	default:
		return errorResponse(cmd.ID, model.ErrCodeBadRequest, fmt.Sprintf("unknown command %q", cmd.Cmd))
	}
}

func (s *Server) handleAuthenticate(c *client, cmd api.Command) api.Response {
	var req api.AuthenticateRequest
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errorResponse(cmd.ID, model.ErrCodeBadRequest, "bad authenticate payload")
		}
	}
	if !s.codes.Validate(req.Code) {
		c.setAuthenticated(false)
		return errorResponse(cmd.ID, model.ErrCodeAuthFailed, model.ErrAuthenticationFailed.Error())
	}
	c.setAuthenticated(true)
	return okResponse(cmd.ID, map[string]bool{"authenticated": true})
}

func (s *Server) advertisedURL() string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	return "ws://" + s.Addr() + "/ws"
}

func okResponse(id string, result any) api.Response {
	return api.Response{SchemaVersion: api.SchemaVersion, ID: id, OK: true, Result: result}
}

func errorResponse(id, code, message string) api.Response {
	return api.Response{
		SchemaVersion: api.SchemaVersion,
		ID:            id,
		Error:         &api.APIError{Code: code, Message: message},
	}
}

func errorFor(id string, err error) api.Response {
	switch {
	case errors.Is(err, model.ErrDirectoryNotFound):
		return errorResponse(id, model.ErrCodeDirNotFound, err.Error())
	case errors.Is(err, model.ErrAgentNotFound):
		return errorResponse(id, model.ErrCodeAgentNotFound, err.Error())
	case errors.Is(err, model.ErrQuestNotFound):
		return errorResponse(id, model.ErrCodeQuestNotFound, err.Error())
	default:
		return errorResponse(id, model.ErrCodeBadRequest, err.Error())
	}
}
