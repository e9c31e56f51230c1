// Package api exposes the conversation, graph and corpus operations over HTTP
// and a websocket.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kgchat/backend/internal/agent"
	"kgchat/backend/internal/corpus"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/state"
	apperrors "kgchat/backend/pkg/errors"
)

// maxUploadBytes bounds a single document upload
const maxUploadBytes = 64 << 20

// Dependencies are the components the routes operate on
type Dependencies struct {
	Orchestrator *agent.Orchestrator
	Graph        graph.Reloader
	Ingestor     *corpus.Ingestor
	CorpusDir    string
	CORSOrigins  []string
	Logger       *zap.Logger
}

type server struct {
	Dependencies
}

// NewRouter builds the gin engine serving every route
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &server{Dependencies: deps}

	router := gin.New()
	router.Use(ginLogger(deps.Logger))
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())
	router.Use(cors(deps.CORSOrigins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Conversational Knowledge Graph API"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.serveWS)

	api := router.Group("/api")
	{
		api.GET("/health", s.health)
		api.POST("/query", s.query)
		api.GET("/stats", s.stats)

		api.GET("/graph/full", s.fullGraph)
		api.GET("/graph/subgraph", s.subgraph)
		api.POST("/graph/reload", s.reload)

		api.POST("/documents/upload", s.upload)
		api.POST("/documents/ingest", s.ingest)
		api.GET("/documents/ingest/status", s.ingestStatus)
	}

	return router
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, state.HealthResponse{Status: "ok", GeneratorReady: s.Orchestrator.Ready()})
}

func (s *server) query(c *gin.Context) {
	var req state.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.NewInvalidPayload("malformed JSON body", err).Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Orchestrator.RunTurn(c.Request.Context(), agent.TurnRequest{
		Query:        req.Query,
		History:      req.ConversationHistory,
		Mode:         req.Mode,
		IncludeGraph: req.WantsGraph(),
		UserPrompt:   req.UserPrompt,
	})
	if err != nil {
		status := turnErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.Logger.Error("Failed to run conversation turn", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, agent.BuildQueryResponse(result))
}

// turnErrorStatus maps a RunTurn failure to an HTTP status
func turnErrorStatus(err error) int {
	var modeErr *apperrors.ErrInvalidMode
	switch {
	case errors.Is(err, apperrors.ErrGeneratorNotReady):
		return http.StatusServiceUnavailable
	case errors.As(err, &modeErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orchestrator.Stats())
}

func (s *server) fullGraph(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orchestrator.FullGraph())
}

func (s *server) subgraph(c *gin.Context) {
	var labels []string
	for _, part := range strings.Split(c.Query("entities"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	if len(labels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entities query parameter is required"})
		return
	}

	hops, err := optionalInt(c, "hops")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	maxNodes, err := optionalInt(c, "max_nodes")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, ok := s.Orchestrator.Subgraph(labels, hops, maxNodes)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching entities found"})
		return
	}
	c.JSON(http.StatusOK, payload)
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewInvalidPayload(key+" must be a non-negative integer", err)
	}
	return v, nil
}

func (s *server) reload(c *gin.Context) {
	snap := s.Graph.Reload(c.Request.Context())
	c.JSON(http.StatusOK, state.ReloadResponse{Nodes: snap.NodeCount(), Edges: snap.EdgeCount()})
}

func (s *server) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(content) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	name, err := corpus.SaveUpload(s.CorpusDir, fh.Filename, content)
	if err != nil {
		s.Logger.Error("Failed to save upload", zap.String("filename", fh.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	s.Logger.Info("Document uploaded", zap.String("filename", name), zap.Int("bytes", len(content)))
	c.JSON(http.StatusOK, state.UploadResponse{Status: "uploaded", Filename: name})
}

func (s *server) ingest(c *gin.Context) {
	c.JSON(http.StatusOK, s.Ingestor.Start(s.CorpusDir))
}

func (s *server) ingestStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Ingestor.Status())
}
