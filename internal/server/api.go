package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/report"
	"github.com/nao1215/onionwatch/internal/scheduler"
)

const (
	maxWalletRows  = 500
	defaultTopRows = 50
	detailAlerts   = 20
)

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTargets(c *gin.Context) {
	f := database.TargetFilter{
		Query:    strings.TrimSpace(c.Query("q")),
		Level:    model.RiskLevel(c.Query("risk")),
		External: model.ExternalRisk(c.Query("ext_risk")),
		Tech:     c.Query("tech"),
	}
	if f.Level != "" && !f.Level.Valid() {
		abort(c, http.StatusBadRequest, fmt.Errorf("unknown risk level %q", f.Level))
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	f.Limit = limit

	targets, err := s.store.ListTargets(c.Request.Context(), f)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, targets)
}

func (s *Server) handleTarget(c *gin.Context) {
	id, err := paramID(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	detail, err := s.store.GetDetail(ctx, id)
	if errors.Is(err, database.ErrTargetNotFound) {
		abort(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	alerts, err := s.store.ListAlerts(ctx, id, detailAlerts)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": detail, "alerts": alerts})
}

func (s *Server) handleWallets(c *gin.Context) {
	coin := strings.ToUpper(strings.TrimSpace(c.Query("coin")))
	rows, err := s.store.ListWallets(c.Request.Context(), coin, c.Query("q"), maxWalletRows)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleTopThreats(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultTopRows)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	rows, err := s.store.TopKeywords(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleDiscovered(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	var scanned *bool
	switch c.Query("scanned") {
	case "0":
		v := false
		scanned = &v
	case "1":
		v := true
		scanned = &v
	}
	links, err := s.store.ListLinks(c.Request.Context(), scanned, limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type deleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleDelete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) == 0 {
		abort(c, http.StatusBadRequest, errors.New("no ids"))
		return
	}
	ctx := c.Request.Context()
	deleted, err := s.store.DeleteTargets(ctx, req.IDs)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.unschedule(ctx, req.IDs)
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": deleted})
}

func (s *Server) handleDeleteErrors(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := s.store.DeleteErrored(ctx)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.unschedule(ctx, ids)
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": len(ids)})
}

// unschedule drops the rescan jobs of deleted targets. A job left behind
// would re-create its target under a new id on the next firing.
func (s *Server) unschedule(ctx context.Context, ids []int64) {
	if s.sched == nil {
		return
	}
	for _, id := range ids {
		if _, err := s.sched.Unschedule(ctx, id); err != nil {
			s.logger.Warn("failed to unschedule deleted target", "target_id", id, "error", err)
		}
	}
}

func (s *Server) handleExportInline(c *gin.Context) {
	targets, err := s.store.ExportAll(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report.NewDocument(targets, s.now()))
}

func (s *Server) handleExport(c *gin.Context) {
	if s.exporter == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("exports are not configured"))
		return
	}
	format, err := report.ParseFormat(c.Param("format"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	targets, err := s.store.ExportAll(ctx)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	paths, err := s.exporter.Export(format, targets, stats)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "files": paths})
}

func (s *Server) handleExportDownload(c *gin.Context) {
	if s.exporter == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("exports are not configured"))
		return
	}
	name := c.Param("filename")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid file name %q", name))
		return
	}
	path := filepath.Join(s.exporter.Dir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		abort(c, http.StatusNotFound, fmt.Errorf("export %q not found", name))
		return
	}
	c.FileAttachment(path, name)
}

func (s *Server) handleAlertStatus(c *gin.Context) {
	if s.alerts == nil {
		c.JSON(http.StatusOK, gin.H{"any_enabled": false, "channels": []string{}})
		return
	}
	c.JSON(http.StatusOK, s.alerts.Status())
}

func (s *Server) handleSchedulerStatus(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusOK, scheduler.Status{})
		return
	}
	c.JSON(http.StatusOK, s.sched.Status())
}

func (s *Server) handleSchedulerJobs(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusOK, []model.RescanJob{})
		return
	}
	c.JSON(http.StatusOK, s.sched.ListJobs())
}

func (s *Server) handleSchedulerLog(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultTopRows)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	rows, err := s.store.ListRescanLog(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleSchedulerStart(c *gin.Context) {
	if s.sched == nil {
		abort(c, http.StatusServiceUnavailable, ErrSchedulerUnavailable)
		return
	}
	if err := s.sched.Start(s.baseCtx); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerRunning) {
			abort(c, http.StatusConflict, err)
			return
		}
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.sched.Status()})
}

func (s *Server) handleSchedulerStop(c *gin.Context) {
	if s.sched == nil {
		abort(c, http.StatusServiceUnavailable, ErrSchedulerUnavailable)
		return
	}
	if err := s.sched.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerStopped) {
			abort(c, http.StatusConflict, err)
			return
		}
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSchedulerDelete(c *gin.Context) {
	if s.sched == nil {
		abort(c, http.StatusServiceUnavailable, ErrSchedulerUnavailable)
		return
	}
	id, err := paramID(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	removed, err := s.sched.Unschedule(c.Request.Context(), id)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		abort(c, http.StatusNotFound, fmt.Errorf("no job for target %d", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func paramID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return id, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}
