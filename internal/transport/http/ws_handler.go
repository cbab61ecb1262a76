package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"quizcode-service/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler exposes the session engine and ranking service over a websocket.
// Each connection owns one session engine; the ranking cache is shared across
// connections.
type WSHandler struct {
	catalog  app.Catalog
	attempts app.AttemptStore
	cache    app.RankingCache
	upgrader websocket.Upgrader
}

func NewWSHandler(catalog app.Catalog, attempts app.AttemptStore, cache app.RankingCache) *WSHandler {
	return &WSHandler{
		catalog:  catalog,
		attempts: attempts,
		cache:    cache,
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

type loadPayload struct {
	Code string `json:"code"`
}

type answerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Option        string `json:"option"`
	TimeRemaining *int   `json:"timeRemaining,omitempty"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type rankingPayload struct {
	QuizID string `json:"quizId"`
	Limit  int    `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// session and ranking use cases. Identity comes from the connection query;
// an absent userId means an anonymous player who can answer but not submit.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	auth := app.StaticAuth{
		UserID:      r.URL.Query().Get("userId"),
		DisplayName: r.URL.Query().Get("name"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	engine := app.NewEngine(h.catalog, h.attempts, auth)
	rankings := app.NewRankingService(h.catalog, h.attempts, auth, h.cache)

	updates, cancel := engine.Subscribe()
	defer cancel()
	defer engine.ResetQuiz()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
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
		h.dispatch(r.Context(), engine, rankings, send, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, engine *app.Engine, rankings *app.RankingService, send chan<- outboundMessage[any], inbound inboundMessage) {
	switch inbound.Type {
	case "load":
		var payload loadPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid load payload")
			return
		}
		engine.LoadByCode(ctx, payload.Code)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid answer payload")
			return
		}
		if payload.TimeRemaining != nil {
			engine.SelectAnswerAt(payload.QuestionIndex, payload.Option, *payload.TimeRemaining)
		} else {
			engine.SelectAnswer(payload.QuestionIndex, payload.Option)
		}
	case "next":
		engine.NextQuestion()
	case "previous":
		engine.PreviousQuestion()
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid goto payload")
			return
		}
		engine.GoToQuestion(payload.Index)
	case "pause":
		engine.PauseTimer()
	case "resume":
		engine.ResumeTimer()
	case "complete":
		engine.CompleteQuiz(ctx)
	case "reset":
		engine.ResetQuiz()
	case "ranking":
		var payload rankingPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid ranking payload")
			return
		}
		ranking, err := rankings.GetQuizRanking(ctx, payload.QuizID, payload.Limit)
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "ranking", Payload: ranking}
	case "rankings":
		var payload rankingPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid rankings payload")
				return
			}
		}
		all, err := rankings.GetAllQuizRankings(ctx, payload.Limit)
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "rankings", Payload: all}
	case "history":
		history, err := rankings.UserHistory(ctx)
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "history", Payload: history}
	case "clearRankings":
		rankings.ClearCache(ctx)
	default:
		send <- errorMessage("unsupported message type")
	}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
