package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/engine"

	"github.com/gorilla/websocket"
)

// WSHandler serves one quiz attempt per websocket connection: the UI
// receives state snapshots (question, options, lives, remaining time,
// power-ups, result) and sends submissions and power-up uses.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	Selected []int `json:"selected"`
}

type textPayload struct {
	Answer string `json:"answer"`
}

type powerUpPayload struct {
	Kind string `json:"kind"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives one attempt until the client
// disconnects. Precondition failures (unknown mode, no questions, empty
// progress set) are rejected before the attempt starts.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	req, err := attemptRequestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	eng, err := h.service.StartAttempt(r.Context(), req)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer eng.Close()

	updates, cancel := eng.Subscribe()
	defer cancel()
	eng.Start()

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
		h.dispatch(r, eng, send, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, eng *engine.Engine, send chan<- outboundMessage[any], inbound inboundMessage) {
	ctx := r.Context()
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid answer payload")
			return
		}
		feedback, err := eng.SubmitAnswer(ctx, payload.Selected)
		if errors.Is(err, domain.ErrNoSelection) {
			send <- errorMessage("select an option first")
			return
		}
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "feedback", Payload: feedback}
	case "text":
		var payload textPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid text payload")
			return
		}
		feedback, err := eng.SubmitText(ctx, payload.Answer)
		if errors.Is(err, domain.ErrNoSelection) {
			send <- errorMessage("type an answer first")
			return
		}
		if err != nil {
			send <- errorMessage(err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "feedback", Payload: feedback}
	case "powerup":
		var payload powerUpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorMessage("invalid powerup payload")
			return
		}
		// spent or unavailable power-ups are a silent no-op
		eng.UsePowerUp(ctx, domain.PowerUpKind(payload.Kind))
	case "next":
		eng.Advance(ctx)
	case "restart":
		if err := eng.Restart(ctx); err != nil {
			send <- errorMessage(err.Error())
		}
	default:
		send <- errorMessage("unsupported message type")
	}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

func attemptRequestFromQuery(r *http.Request) (app.AttemptRequest, error) {
	q := r.URL.Query()
	course := q.Get("course")
	if course == "" {
		return app.AttemptRequest{}, errors.New("missing course")
	}
	mode, err := domain.ParseMode(q.Get("mode"))
	if err != nil {
		return app.AttemptRequest{}, err
	}
	req := app.AttemptRequest{CourseCode: course, Mode: mode}
	req.Week = intQuery(q.Get("week"))
	req.NumQuestions = intQuery(q.Get("numQuestions"))
	req.TimeLimitSeconds = intQuery(q.Get("timeLimit"))
	return req, nil
}

func intQuery(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
