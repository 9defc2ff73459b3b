package restapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"balance_engine/internal/domain/entity"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamWriteWait  = 10 * time.Second
	streamBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is pushed to websocket clients for every balance change.
type StreamMessage struct {
	Event entity.BalanceChanged `json:"event"`
	Data  *BalanceDataResponse  `json:"data,omitempty"`
}

// Stream upgrades to a websocket and pushes balance changes until the client
// disconnects. ?accounts=a,b restricts the stream to those accounts.
func (h *BalanceHandler) Stream(c *gin.Context) {
	filter := make(map[entity.AccountID]struct{})
	for _, id := range strings.Split(c.Query("accounts"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			filter[entity.AccountID(id)] = struct{}{}
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	events, cancel := h.balances.Subscribe(streamBuffer)
	h.logger.Debug("Stream client connected", "remote", c.ClientIP(), "accounts", len(filter))

	done := make(chan struct{})
	go h.writeStream(conn, events, filter, done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-done
	_ = conn.Close()
	h.logger.Debug("Stream client disconnected", "remote", c.ClientIP())
}

func (h *BalanceHandler) writeStream(conn *websocket.Conn, events <-chan entity.BalanceChanged, filter map[entity.AccountID]struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
				return
			}
			if len(filter) > 0 {
				if _, want := filter[ev.AccountID]; !want {
					continue
				}
			}
			payload, err := json.Marshal(h.streamMessage(ev))
			if err != nil {
				h.logger.Error("Failed to encode stream message", "accountId", ev.AccountID, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *BalanceHandler) streamMessage(ev entity.BalanceChanged) StreamMessage {
	msg := StreamMessage{Event: ev}
	if data, ok := h.balances.AccountBalanceData(ev.AccountID); ok {
		resp := h.balanceDataResponse(ev.AccountID, data)
		msg.Data = &resp
	}
	return msg
}
