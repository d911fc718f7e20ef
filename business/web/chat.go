package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/streamersales/goCollectionAgent/business/orchestrator"
	"github.com/streamersales/goCollectionAgent/business/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chat drives the conversation page. One websocket connection is one
// visit: the transcript is replayed, a fresh transcript triggers the
// unprompted opening turn, and every client frame afterwards runs one
// input cycle. A dedicated read pump feeds the cycle loop, so a client
// closing the connection mid-stream cancels the in-flight generation;
// the partial reply stays committed.
func (h *handlers) chat(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Entering chat with no bound item has no defined context; bounce the
	// client back to the catalog page.
	if !sess.ChatReady() {
		sess.Go(session.PageProducts)
		page, _ := sess.Advance()
		return conn.WriteJSON(serverFrame{Type: frameRedirect, Page: page})
	}

	sess.Go(session.PageChat)
	sess.Advance()

	if err := conn.WriteJSON(serverFrame{Type: frameHistory, Messages: sess.Transcript()}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// The pump is the connection's only reader. A read error means the
	// client is gone: cancelling the context aborts any in-flight
	// generation, which terminates with its partial text committed.
	frames := make(chan clientFrame)
	go func() {
		defer cancel()
		for {
			var frame clientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.s.Logger.Errorw("web: chat: read", "sessionID", sess.ID, "ERROR", err)
				}
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	if sess.TranscriptLen() == 0 {
		if err := h.runOpening(ctx, conn, sess); err != nil {
			return err
		}
	}

	for {
		var frame clientFrame
		select {
		case frame = <-frames:
		case <-ctx.Done():
			return nil
		}

		prompt, ok := sess.NextPrompt(frame.Text, frame.AsrText)
		if !ok {
			if err := conn.WriteJSON(serverFrame{Type: frameIdle}); err != nil {
				return err
			}
			continue
		}

		if err := h.runTurn(ctx, conn, sess, prompt); err != nil {
			return err
		}
	}
}

func (h *handlers) runOpening(ctx context.Context, conn *websocket.Conn, sess *session.Session) error {
	return h.stream(conn, sess, func(emit func(string)) (string, error) {
		return h.s.Orchestrator.OpenConversation(ctx, sess, emit)
	})
}

func (h *handlers) runTurn(ctx context.Context, conn *websocket.Conn, sess *session.Session, prompt string) error {
	return h.stream(conn, sess, func(emit func(string)) (string, error) {
		return h.s.Orchestrator.HandleTurn(ctx, sess, prompt, false, emit)
	})
}

// stream runs one turn, relaying fragments as they arrive, then sends
// the committed turn. A mid-stream failure is surfaced as a recoverable
// error frame; the connection stays open.
func (h *handlers) stream(conn *websocket.Conn, sess *session.Session, run func(emit func(string)) (string, error)) error {
	var writeErr error
	emit := func(fragment string) {
		if writeErr != nil {
			return
		}
		writeErr = conn.WriteJSON(serverFrame{Type: frameFragment, Text: fragment})
	}

	_, err := run(emit)
	if err != nil && !errors.Is(err, orchestrator.ErrStreamInterrupted) {
		h.s.Logger.Errorw("web: chat: turn failed", "sessionID", sess.ID, "ERROR", err)
		return conn.WriteJSON(serverFrame{Type: frameError, Error: "generation failed, please retry"})
	}

	transcript := sess.Transcript()
	if len(transcript) > 0 {
		last := transcript[len(transcript)-1]
		if werr := conn.WriteJSON(serverFrame{Type: frameTurn, Turn: &last}); werr != nil {
			return werr
		}
	}

	if err != nil {
		return conn.WriteJSON(serverFrame{Type: frameError, Error: "reply was cut short"})
	}
	return writeErr
}
