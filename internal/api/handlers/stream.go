package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMessage = maxUploadBytes
)

// StreamMessage is one server → client frame
type StreamMessage struct {
	Session string              `json:"session"`
	Seq     int                 `json:"seq"`
	Type    string              `json:"type"` // "result" | "error"
	Result  *analysis.Screening `json:"result,omitempty"`
	Error   *ErrorBody          `json:"error,omitempty"`
}

// Frame types
const (
	FrameResult = "result"
	FrameError  = "error"
)

// streamRequest is one client → server frame. csv is only needed on the
// first frame; later frames may send parameters alone.
type streamRequest struct {
	seq int
	req ScreenRequest
	err error
}

// StreamHandler recomputes the screening on every inbound parameter frame
// ⭐ SSOT: 인터랙티브 재계산 세션은 여기서만 (연결 단위 입력 테이블만 보관)
type StreamHandler struct {
	service  *analysis.Service
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a new websocket handler
func NewStreamHandler(service *analysis.Service, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Serve upgrades the connection and runs the session
// GET /ws/screen
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	log := h.logger.WithField("session", session)
	log.Info("Screen stream opened")

	// 최신 요청만 보관: 처리 중에 새 요청이 오면 이전 요청은 버림
	latest := make(chan streamRequest, 1)
	done := make(chan struct{})
	go h.read(conn, latest, done, log)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	var table *contracts.ScoreTable
	for {
		select {
		case <-done:
			log.Info("Screen stream closed")
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case frame := <-latest:
			msg := StreamMessage{Session: session, Seq: frame.seq}

			out, parsed, err := h.recompute(table, frame)
			if parsed != nil {
				table = parsed
			}
			if err != nil {
				body := errorBody(err)
				msg.Type, msg.Error = FrameError, &body
			} else {
				msg.Type, msg.Result = FrameResult, out
			}

			// 계산 중 더 새로운 요청이 도착했으면 이 결과는 폐기
			if len(latest) > 0 {
				log.WithField("seq", frame.seq).Debug("Superseded result dropped")
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Warn("WebSocket write failed")
				return
			}
		}
	}
}

// recompute runs one full screening; a frame with csv replaces the session table
func (h *StreamHandler) recompute(table *contracts.ScoreTable, frame streamRequest) (*analysis.Screening, *contracts.ScoreTable, error) {
	if frame.err != nil {
		return nil, nil, &contracts.InputValidationError{Field: "message", Message: frame.err.Error()}
	}

	req := &frame.req
	var parsed *contracts.ScoreTable
	if req.CSV != "" {
		t, err := parseTable(req.CSV)
		if err != nil {
			return nil, nil, err
		}
		parsed, table = t, t
	}
	if table == nil {
		return nil, nil, &contracts.InputValidationError{Field: "csv", Message: "first message must carry the input CSV"}
	}

	out, err := h.service.Screen(table, req.Params(), req.Columns)
	return out, parsed, err
}

func (h *StreamHandler) read(conn *websocket.Conn, latest chan streamRequest, done chan struct{}, log *logger.Logger) {
	defer close(done)

	conn.SetReadLimit(streamMaxMessage)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for seq := 1; ; seq++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WebSocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamPongWait))

		frame := streamRequest{seq: seq}
		if err := json.Unmarshal(data, &frame.req); err != nil {
			frame.err = err
		} else if err := defaults.Set(&frame.req); err != nil {
			frame.err = err
		}

		// 대기 중인 이전 요청 교체
		select {
		case <-latest:
		default:
		}
		latest <- frame
	}
}
