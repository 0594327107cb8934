// Package monitor serves beanstalkd statistics over HTTP as JSON.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/protocol"
)

const jsonContentType = "application/json; charset=utf-8"

type handler struct {
	pool *client.Pool
	log  *zap.Logger
}

// NewRouter returns the monitor routes. Every request borrows its own
// connection from pool.
func NewRouter(pool *client.Pool, debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	h := &handler{pool: pool, log: log}

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/stats", h.stats)
	r.GET("/tubes", h.tubes)
	r.GET("/tubes/:tube/stats", h.tubeStats)
	r.GET("/jobs/:id", h.job)
	r.GET("/jobs/:id/stats", h.jobStats)

	return r
}

// with borrows a connection for the duration of fn.
func (h *handler) with(c *gin.Context, fn func(ctx context.Context, conn *client.Conn) ([]byte, error)) {
	ctx := c.Request.Context()

	conn, err := h.pool.Get(ctx)
	if err != nil {
		h.fail(c, http.StatusServiceUnavailable, err)
		return
	}

	doc, err := fn(ctx, conn)

	if perr := h.pool.Put(conn); perr != nil {
		h.log.Warn("Failed to return connection to the pool", zap.Error(perr))
	}

	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}

	if path := c.Query("field"); path != "" {
		raw, ok := Field(doc, path)
		if !ok {
			h.fail(c, http.StatusNotFound, errors.New("no field "+path))
			return
		}
		doc = []byte(raw)
	}

	c.Data(http.StatusOK, jsonContentType, doc)
}

func (h *handler) stats(c *gin.Context) {
	h.with(c, func(ctx context.Context, conn *client.Conn) ([]byte, error) {
		stats, err := conn.Stats(ctx)
		if err != nil {
			return nil, err
		}

		return RenderStats(stats)
	})
}

func (h *handler) tubes(c *gin.Context) {
	h.with(c, func(ctx context.Context, conn *client.Conn) ([]byte, error) {
		names, err := conn.ListTubes(ctx)
		if err != nil {
			return nil, err
		}

		return RenderList(names)
	})
}

func (h *handler) tubeStats(c *gin.Context) {
	tube := c.Param("tube")

	h.with(c, func(ctx context.Context, conn *client.Conn) ([]byte, error) {
		stats, err := conn.StatsTube(ctx, tube)
		if err != nil {
			return nil, err
		}

		return RenderStats(stats)
	})
}

func (h *handler) job(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	h.with(c, func(ctx context.Context, conn *client.Conn) ([]byte, error) {
		job, err := conn.Peek(ctx, id)
		if err != nil {
			return nil, err
		}

		doc, err := sjson.SetBytes([]byte("{}"), "id", job.ID)
		if err != nil {
			return nil, err
		}

		return sjson.SetBytes(doc, "body", string(job.Body))
	})
}

func (h *handler) jobStats(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	h.with(c, func(ctx context.Context, conn *client.Conn) ([]byte, error) {
		stats, err := conn.StatsJob(ctx, id)
		if err != nil {
			return nil, err
		}

		return RenderStats(stats)
	})
}

func (h *handler) jobID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return 0, false
	}

	return id, true
}

func (h *handler) fail(c *gin.Context, status int, err error) {
	doc, jerr := sjson.SetBytes([]byte("{}"), "error", err.Error())
	if jerr != nil {
		c.String(status, err.Error())
		return
	}

	c.Data(status, jsonContentType, doc)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrInvalidTubeName):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
