package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
	"github.com/GoSim-25-26J-441/project-collab/internal/realtime"
)

const streamBuffer = 32

// streamProjectEvents streams project changes using Server-Sent Events (SSE).
// The subscription is opened before the initial state is read, so no update
// falls between the two. It is released when the client disconnects.
func (h *Handler) streamProjectEvents(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	events := make(chan realtime.Event, streamBuffer)
	var lagged atomic.Bool
	sub, err := h.svc.SubscribeToProjectChanges(ctx, projectID, func(ev realtime.Event) {
		select {
		case events <- ev:
		default:
			lagged.Store(true)
		}
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer h.svc.Unsubscribe(sub)

	project, err := h.svc.GetProject(ctx, projectID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering
	c.Status(http.StatusOK)

	writeEvent(c, "initial", gin.H{"project": project})
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-ticker.C:
			if !lagged.Swap(false) {
				fmt.Fprint(c.Writer, ": keep-alive\n\n")
				flusher.Flush()
				continue
			}
			open := h.resync(c, projectID, &lagged)
			flusher.Flush()
			if !open {
				return
			}

		case ev := <-events:
			switch ev.Type {
			case realtime.EventDeleted:
				writeEvent(c, "deleted", gin.H{"event": "deleted", "project_id": projectID, "actor_id": ev.ActorID})
				flusher.Flush()
				return
			case realtime.EventRevoked:
				writeEvent(c, "revoked", gin.H{"event": "revoked", "project_id": projectID})
				flusher.Flush()
				return
			case realtime.EventUpdated:
				writeEvent(c, "update", gin.H{"project": ev.Project, "actor_id": ev.ActorID})
				flusher.Flush()
			default:
				h.logger.Debug("ignoring unknown project event",
					zap.String("project_id", projectID),
					zap.String("type", string(ev.Type)),
				)
			}
		}
	}
}

// resync replaces events dropped for a slow client with the current record.
// It reports whether the stream stays open. Transient store failures keep
// the stream open and retry on the next tick.
func (h *Handler) resync(c *gin.Context, projectID string, lagged *atomic.Bool) bool {
	current, err := h.svc.GetProject(c.Request.Context(), projectID)
	switch {
	case err == nil:
		writeEvent(c, "update", gin.H{"project": current})
		return true
	case errors.Is(err, domain.ErrNotFound):
		writeEvent(c, "deleted", gin.H{"event": "deleted", "project_id": projectID})
		return false
	case errors.Is(err, domain.ErrNotAuthorized):
		writeEvent(c, "revoked", gin.H{"event": "revoked", "project_id": projectID})
		return false
	case domain.Retryable(err):
		h.logger.Warn("resync failed, retrying",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		lagged.Store(true)
		fmt.Fprint(c.Writer, ": keep-alive\n\n")
		return true
	default:
		writeEvent(c, "error", gin.H{"event": "error", "project_id": projectID, "code": domain.Code(err)})
		return false
	}
}

func writeEvent(c *gin.Context, name string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data)
}
