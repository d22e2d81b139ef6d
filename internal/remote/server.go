package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/pack"
)

// Headers carrying revision metadata next to a packed payload.
const (
	HeaderParent    = "X-Helio-Parent"
	HeaderHash      = "X-Helio-Hash"
	HeaderTimestamp = "X-Helio-Timestamp"
	HeaderError     = "X-Helio-Error"

	contentType = "application/x-helio-pack"
)

// Error codes sent in HeaderError.
const (
	codeNotFound      = "not-found"
	codeHashMismatch  = "hash-mismatch"
	codeUnknownParent = "unknown-parent"
	codeConflict      = "conflict"
	codeBadRequest    = "bad-request"
)

const maxBodySize = 64 << 20

// Server exposes a MemoryRemote over HTTP.
type Server struct {
	backend  *MemoryRemote
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

type ServerOption func(*Server)

func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithMetricsGatherer serves the gatherer on /metrics.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

func NewServer(backend *MemoryRemote, opts ...ServerOption) *Server {
	s := &Server{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/revisions", s.listRevisions)
		v1.GET("/revisions/:id", s.getRevision)
		v1.PUT("/revisions/:id", s.putRevision)
		v1.GET("/bundle", s.getBundle)
	}
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("remote server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"revisions": s.backend.Len(),
	})
}

func (s *Server) listRevisions(c *gin.Context) {
	revs, err := s.backend.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := pack.Encode(encodeListing(revs))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) getRevision(c *gin.Context) {
	id := c.Param("id")
	meta, ok := s.backend.Lookup(id)
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", ErrNotFound, id))
		return
	}
	payload, err := s.backend.Fetch(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	data, err := pack.Encode(payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	setMetaHeaders(c.Writer.Header(), meta)
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) putRevision(c *gin.Context) {
	meta, err := metaFromHeaders(c.Param("id"), c.Request.Header)
	if err != nil {
		s.fail(c, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	payload, err := pack.Decode(body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.backend.Push(c.Request.Context(), meta, payload); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("revision stored", zap.String("revision", meta.ID), zap.String("parent", meta.ParentID))
	c.Status(http.StatusCreated)
}

func (s *Server) getBundle(c *gin.Context) {
	data, err := s.backend.Export(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

var errBadRequest = errors.New("remote: bad request")

func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ""
	switch {
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, ErrHashMismatch):
		status, code = http.StatusUnprocessableEntity, codeHashMismatch
	case errors.Is(err, ErrUnknownParent):
		status, code = http.StatusConflict, codeUnknownParent
	case errors.Is(err, ErrConflict):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, codeBadRequest
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	if code != "" {
		c.Header(HeaderError, code)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func setMetaHeaders(h http.Header, meta RemoteRevision) {
	h.Set(HeaderHash, meta.Hash.String())
	h.Set(HeaderTimestamp, strconv.FormatInt(meta.Timestamp.UnixMilli(), 10))
	if meta.ParentID != "" {
		h.Set(HeaderParent, meta.ParentID)
	}
}

func metaFromHeaders(id string, h http.Header) (RemoteRevision, error) {
	meta := RemoteRevision{ID: id, ParentID: h.Get(HeaderParent)}
	if v := h.Get(HeaderHash); v != "" {
		hash, err := cas.ParseHash(v)
		if err != nil {
			return meta, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		meta.Hash = hash
	}
	if v := h.Get(HeaderTimestamp); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return meta, fmt.Errorf("%w: bad timestamp %q", errBadRequest, v)
		}
		meta.Timestamp = time.UnixMilli(ms).UTC()
	}
	return meta, nil
}
