package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/onionwatch/internal/pipeline"
)

// defaultCrawlLimit is the crawl size when the request names none.
const defaultCrawlLimit = 50

type scanRequest struct {
	// URLs is newline separated; blank and # lines are skipped.
	URLs        string `json:"urls"`
	ThreatIntel bool   `json:"threat_intel"`
}

type crawlRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleScanStart(c *gin.Context) {
	if s.batch.Running() {
		abort(c, http.StatusConflict, pipeline.ErrBatchRunning)
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	urls := pipeline.NormalizeURLs(req.URLs)
	events, err := s.batch.Start(s.baseCtx, urls, req.ThreatIntel)
	if err != nil {
		s.abortBatch(c, err)
		return
	}
	s.hub.attach(events)
	s.logger.Info("batch started", "urls", len(urls), "threat_intel", req.ThreatIntel)
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(urls)})
}

func (s *Server) handleScanCrawl(c *gin.Context) {
	if s.batch.Running() {
		abort(c, http.StatusConflict, pipeline.ErrBatchRunning)
		return
	}
	req := crawlRequest{Limit: defaultCrawlLimit}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = defaultCrawlLimit
	}

	events, n, err := s.batch.StartCrawl(s.baseCtx, req.Limit)
	if err != nil {
		s.abortBatch(c, err)
		return
	}
	s.hub.attach(events)
	s.logger.Info("crawl started", "links", n)
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": n})
}

func (s *Server) abortBatch(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrBatchRunning):
		abort(c, http.StatusConflict, err)
	case errors.Is(err, pipeline.ErrNoURLs), errors.Is(err, pipeline.ErrNoPendingLinks):
		abort(c, http.StatusBadRequest, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleScanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": s.batch.Running()})
}

// handleScanStream replays the latest batch and follows it live until the
// terminal event, sending a keep-alive comment while idle.
func (s *Server) handleScanStream(c *gin.Context) {
	st := s.hub.latest()
	if st == nil {
		abort(c, http.StatusNotFound, ErrNoBatch)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	sent := 0
	for {
		events, closed, changed := st.since(sent)
		for _, ev := range events {
			c.SSEvent(string(ev.Kind), ev.Data)
			sent++
			if ev.Kind.Terminal() {
				c.Writer.Flush()
				return
			}
		}
		c.Writer.Flush()
		if closed {
			return
		}

		select {
		case <-changed:
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
