package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

const writeTimeout = 5 * time.Second

// events upgrades to a websocket and streams notebook events matching the
// "pattern" query parameter as JSON text messages. Client messages are
// read and discarded so close frames are seen.
func (s *Server) events(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := s.nb.Subscribe(ctx, c.DefaultQuery("pattern", "**"))
	if err != nil {
		badRequest(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()
	s.logger.Debug("event stream opened", "remote", c.ClientIP())

	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-sub:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "notebook closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
