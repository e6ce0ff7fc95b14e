package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
)

type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type HealthResponse struct {
	Status       string         `json:"status"`
	CacheEntries int            `json:"cache_entries"`
	Stats        *monitor.Stats `json:"stats,omitempty"`
}

type snapshotQuery struct {
	Repo    string `form:"repo"`
	PR      string `form:"pr"`
	Refresh string `form:"refresh"`
}

// handleSnapshot handles GET /api/snapshot?repo=&pr=&refresh=.
func (s *Server) handleSnapshot(c *gin.Context) {
	var q snapshotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, string(monitor.CodeInvalidArgument), "invalid query")
		return
	}

	req := monitor.Request{Repo: q.Repo}
	if q.PR != "" {
		pr, err := strconv.Atoi(q.PR)
		if err != nil {
			writeError(c, http.StatusBadRequest, string(monitor.CodeInvalidArgument), "pr must be a number")
			return
		}
		req.PR = pr
	}
	if q.Refresh != "" {
		refresh, err := strconv.ParseBool(q.Refresh)
		if err != nil {
			writeError(c, http.StatusBadRequest, string(monitor.CodeInvalidArgument), "refresh must be a boolean")
			return
		}
		req.ForceRefresh = refresh
	}

	snap, err := s.svc.Snapshot(c.Request.Context(), req)
	if err != nil {
		code := monitor.CodeOf(err)
		writeError(c, httpStatus(code), string(code), monitor.PublicMessage(err))
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if s.opts.CacheLen != nil {
		resp.CacheEntries = s.opts.CacheLen()
	}
	if s.opts.Stats != nil {
		st := s.opts.Stats()
		resp.Stats = &st
	}
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	c.JSON(status, resp)
}

func httpStatus(code monitor.ErrorCode) int {
	switch code {
	case monitor.CodeInvalidArgument:
		return http.StatusBadRequest
	case monitor.CodeMissingToken:
		return http.StatusInternalServerError
	case monitor.CodeRepoNotFound:
		return http.StatusNotFound
	case monitor.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func rpcCode(code monitor.ErrorCode) int {
	switch code {
	case monitor.CodeMissingToken:
		return -32001
	case monitor.CodeInvalidToken:
		return -32002
	case monitor.CodeRepoNotFound:
		return -32003
	case monitor.CodeRateLimited:
		return -32004
	case monitor.CodeInvalidArgument:
		return -32602
	default:
		return -32000
	}
}
