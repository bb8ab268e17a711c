package console

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicedesk/voicedesk/pkg/orchestrator"
	"github.com/voicedesk/voicedesk/pkg/session"
	"github.com/voicedesk/voicedesk/pkg/transports"
)

type Config struct {
	Path string `mapstructure:"path"`
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/console/ws"
	}
	return c
}

// Adapter runs conversations over a websocket instead of a phone line. One
// connection is one call, text messages stand in for speech turns.
type Adapter struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg Config, orch *orchestrator.Orchestrator, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:    cfg.withDefaults(),
		orch:   orch,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (a *Adapter) Name() string { return "console" }

func (a *Adapter) Register(mux *http.ServeMux) {
	mux.HandleFunc(a.cfg.Path, a.handleWS)
}

type inbound struct {
	Type       string `json:"type"`
	BusinessID string `json:"businessId"`
	From       string `json:"from"`
	Text       string `json:"text"`
}

type outbound struct {
	Type        string                 `json:"type"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Instruction transports.Instruction `json:"instruction"`
	Error       string                 `json:"error,omitempty"`
}

func (a *Adapter) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("console_upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var sessionID string
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "start":
			sessionID = a.start(ctx, conn, msg)
		case "utterance":
			if sessionID == "" {
				a.send(conn, outbound{Type: "error", Error: "no active call, send start first"})
				continue
			}
			if a.turn(ctx, conn, sessionID, msg.Text) {
				return
			}
		default:
			a.send(conn, outbound{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

func (a *Adapter) start(ctx context.Context, conn *websocket.Conn, msg inbound) string {
	s, greeting, err := a.orch.StartCall(ctx, orchestrator.StartParams{
		BusinessID:     msg.BusinessID,
		ExternalCallID: "console-" + uuid.NewString(),
		Provider:       "console",
		From:           msg.From,
		Direction:      session.DirectionInbound,
	})
	if err != nil {
		a.logger.Error("console_call_start_failed", "business_id", msg.BusinessID, "error", err.Error())
		a.send(conn, outbound{Type: "error", Error: err.Error()})
		return ""
	}
	a.send(conn, outbound{
		Type:        "instruction",
		SessionID:   s.ID,
		Instruction: transports.FromResult(orchestrator.Result{Text: greeting, CallState: s.CallState}, s, "console"),
	})
	return s.ID
}

// turn reports whether the call finished and the connection should close.
func (a *Adapter) turn(ctx context.Context, conn *websocket.Conn, sessionID, text string) bool {
	res, err := a.orch.ProcessTurn(ctx, sessionID, text)
	if err != nil {
		a.logger.Error("console_turn_failed", "session_id", sessionID, "error", err.Error())
		a.send(conn, outbound{Type: "error", Error: err.Error()})
		return false
	}
	s, err := a.orch.Session(ctx, sessionID)
	if err != nil {
		s = session.CallSession{ID: sessionID}
	}
	a.send(conn, outbound{
		Type:        "instruction",
		SessionID:   sessionID,
		Instruction: transports.FromResult(res, s, "console"),
	})
	if res.Hangup || res.TransferTo != "" {
		if err := a.orch.EndCall(ctx, sessionID, session.StatusCompleted); err != nil {
			a.logger.Error("console_finalize_failed", "session_id", sessionID, "error", err.Error())
		}
		return true
	}
	return false
}

func (a *Adapter) send(conn *websocket.Conn, msg outbound) {
	if err := conn.WriteJSON(msg); err != nil {
		a.logger.Warn("console_send_failed", "error", err.Error())
	}
}
