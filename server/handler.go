package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/mascoordinator/coordinator"
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/stage"
)

const (
	headerAPIKey         = "Api-Key"
	headerConversationID = "X-Conversation-Id"
	unknownConversation  = "unknown"
)

func apiKey(r *http.Request) string {
	if key := r.Header.Get(headerAPIKey); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func conversationID(r *http.Request) string {
	if id := r.Header.Get(headerConversationID); id != "" {
		return id
	}
	return unknownConversation
}

func (s *Server) handleChatCompletion(c *gin.Context) {
	if deployment := c.Param("deployment"); deployment != s.opts.DeploymentName {
		abortWithError(c, http.StatusNotFound, APIError{
			Message: fmt.Sprintf("deployment %q not found", deployment),
			Type:    errTypeInvalidRequest,
			Code:    "deployment_not_found",
		})
		return
	}

	var body ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, APIError{
			Message: fmt.Sprintf("malformed request body: %v", err),
			Type:    errTypeInvalidRequest,
		})
		return
	}

	req := coordinator.Request{
		ConversationID: conversationID(c.Request),
		APIKey:         apiKey(c.Request),
		Messages:       body.Messages,
	}
	logger := logging.With(s.logger, "conversation_id", req.ConversationID)

	if body.Stream {
		s.stream(c, req, logger)
		return
	}
	s.complete(c, req, logger)
}

// complete runs the pipeline to the end and answers with one JSON completion.
func (s *Server) complete(c *gin.Context, req coordinator.Request, logger logging.Logger) {
	rec := &stage.Recorder{}
	final, err := s.handler.HandleRequest(c.Request.Context(), stage.NewChoice(rec, withLogger(logger)), req)
	if err != nil {
		status, apiErr := classify(err)
		abortWithError(c, status, apiErr)
		return
	}

	c.JSON(http.StatusOK, Completion{
		ID:      core.NewID(),
		Object:  objectCompletion,
		Created: time.Now().Unix(),
		Model:   s.opts.DeploymentName,
		Choices: []CompletionChoice{{
			Message: CompletionMessage{
				Role:          core.RoleAssistant,
				Content:       final.Content,
				CustomContent: completionCustomContent(final.CustomContent, rec.Stages()),
			},
			FinishReason: finishStop,
		}},
	})
}

type result struct {
	msg core.Message
	err error
}

// stream runs the pipeline in its own goroutine and relays every update as
// an SSE chunk. The update channel is always drained so stage closes never
// block the pipeline.
func (s *Server) stream(c *gin.Context, req coordinator.Request, logger logging.Logger) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := stage.NewChannelSink(s.opts.StreamBuffer)
	done := make(chan result, 1)

	go func() {
		defer sink.Close()
		msg, err := s.handler.HandleRequest(ctx, stage.NewChoice(sink, withLogger(logger)), req)
		done <- result{msg: msg, err: err}
	}()

	w := &chunkWriter{c: c, id: core.NewID(), model: s.opts.DeploymentName, created: time.Now().Unix()}

	var writeErr error
	for d := range sink.Updates() {
		if writeErr != nil {
			continue
		}
		if writeErr = w.chunk(deltaFor(d), nil); writeErr != nil {
			logger.Warn("client write failed, cancelling request", "error", writeErr)
			cancel()
		}
	}

	res := <-done
	if writeErr != nil {
		return
	}

	if res.err != nil {
		status, apiErr := classify(res.err)
		if !w.started {
			abortWithError(c, status, apiErr)
			return
		}
		if err := w.write(ErrorResponse{Error: apiErr}); err != nil {
			logger.Warn("failed to write error chunk", "error", err)
			return
		}
	} else {
		finish := finishStop
		if err := w.chunk(Delta{CustomContent: finalCustomContent(res.msg.CustomContent)}, &finish); err != nil {
			logger.Warn("failed to write final chunk", "error", err)
			return
		}
	}

	if err := w.done(); err != nil {
		logger.Warn("failed to terminate stream", "error", err)
	}
}

func withLogger(l logging.Logger) func(o *stage.Options) {
	return func(o *stage.Options) { o.Logger = l }
}

// chunkWriter writes SSE events. Headers are sent with the first event so
// requests failing before any update can still be answered with a status.
type chunkWriter struct {
	c       *gin.Context
	id      string
	model   string
	created int64

	started  bool
	roleSent bool
}

func (w *chunkWriter) start() {
	if w.started {
		return
	}
	w.started = true

	h := w.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
}

func (w *chunkWriter) chunk(delta Delta, finishReason *string) error {
	if !w.roleSent {
		delta.Role = core.RoleAssistant
		w.roleSent = true
	}
	return w.write(Chunk{
		ID:      w.id,
		Object:  objectChunk,
		Created: w.created,
		Model:   w.model,
		Choices: []ChunkChoice{{Delta: delta, FinishReason: finishReason}},
	})
}

func (w *chunkWriter) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.start()
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

func (w *chunkWriter) done() error {
	w.start()
	if _, err := fmt.Fprint(w.c.Writer, "data: [DONE]\n\n"); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
