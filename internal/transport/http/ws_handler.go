package http

import (
	"context"
	"encoding/json"
	"net/http"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	engines  app.EngineRegistry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engines app.EngineRegistry, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		engines: engines,
		log:     log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Mode domain.ModeType `json:"mode"`
	Set  string          `json:"set"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type answerPayload struct {
	Key string `json:"key"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and binds them to the client's exam engine.
// Every engine change, including timer ticks, is pushed as a "state" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "missing clientId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("client_id", clientID).Logger()
	engine := h.engines.GetOrCreate(clientID)
	updates, cancel := engine.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.dispatch(r.Context(), engine, inbound) {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone

	h.release(clientID, engine)
}

// release drops the client's engine once no exam is running on it. A running
// exam is kept so the client can reconnect and continue.
func (h *WSHandler) release(clientID string, engine *app.Engine) {
	current, ok := h.engines.Get(clientID)
	if !ok || current != engine || engine.State() == domain.StateInProgress {
		return
	}
	h.engines.Delete(clientID)
	h.log.Debug().Str("client_id", clientID).Msg("released exam engine")
}

// dispatch applies one inbound message to the engine and returns the direct replies.
// State changes reach the client through the subscription.
func (h *WSHandler) dispatch(ctx context.Context, engine *app.Engine, in inboundMessage) []outboundMessage[any] {
	var err error
	switch in.Type {
	case "start":
		var p startPayload
		if err := decode(in.Payload, &p); err != nil {
			return errorReply("invalid start payload")
		}
		mode := domain.ExamMode{Type: p.Mode, Set: p.Set}
		if mode.Type == "" {
			mode = domain.RandomMode()
		}
		err = engine.StartExam(ctx, mode)
	case "goto":
		var p gotoPayload
		if err := decode(in.Payload, &p); err != nil {
			return errorReply("invalid goto payload")
		}
		err = engine.GoTo(p.Index)
	case "next":
		err = engine.Next()
	case "prev":
		err = engine.Prev()
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil || p.Key == "" {
			return errorReply("invalid answer payload")
		}
		err = engine.SelectAnswer(ctx, p.Key)
	case "flag":
		err = engine.ToggleFlag()
	case "submit":
		res, submitErr := engine.SubmitExam(ctx, false)
		if submitErr == nil {
			return []outboundMessage[any]{{Type: "result", Payload: res}}
		}
		err = submitErr
	case "reset":
		engine.Reset()
	case "state":
		return []outboundMessage[any]{{Type: "state", Payload: engine.Snapshot()}}
	default:
		return errorReply("unsupported message type")
	}
	if err != nil {
		return errorReply(err.Error())
	}
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func errorReply(msg string) []outboundMessage[any] {
	return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: msg}}}
}
