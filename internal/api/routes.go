package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/features"
	"github.com/ShivamCore/mlserve/internal/inference"
	"github.com/ShivamCore/mlserve/internal/store"
)

// Config defines server dependencies.
type Config struct {
	Registry         *inference.Registry
	History          store.History
	HistoryCap       int
	AllowedOrigins   []string
	PredictRateLimit int
	BatchRateLimit   int
	RateWindow       time.Duration
	InfoCacheTTL     time.Duration
	MaxUploadBytes   int64
}

// Server wires HTTP handlers to the inference registry and the history store.
type Server struct {
	registry       *inference.Registry
	history        store.History
	historyCap     int
	allowedOrigins []string
	notifier       *PredictionNotifier
	predictLimiter *RateLimiter
	batchLimiter   *RateLimiter
	infoCache      *expirable.LRU[string, ModelsInfoResponse]
	maxUpload      int64
}

const modelsInfoKey = "models"

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("inference registry required")
	}
	if cfg.History == nil {
		return nil, errors.New("history store required")
	}
	ttl := cfg.InfoCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	historyCap := cfg.HistoryCap
	if historyCap <= 0 {
		historyCap = store.DefaultHistoryCap
	}
	window := cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}

	return &Server{
		registry:       cfg.Registry,
		history:        cfg.History,
		historyCap:     historyCap,
		allowedOrigins: cfg.AllowedOrigins,
		notifier:       NewPredictionNotifier(),
		predictLimiter: NewRateLimiter(cfg.PredictRateLimit, window),
		batchLimiter:   NewRateLimiter(cfg.BatchRateLimit, window),
		infoCache:      expirable.NewLRU[string, ModelsInfoResponse](1, nil, ttl),
		maxUpload:      maxUpload,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 || containsWildcard(s.allowedOrigins) {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowCredentials = true
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", headerRequestID}
	corsCfg.ExposeHeaders = []string{headerRequestID, headerResponseTime}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))
	r.Use(RequestIDMiddleware(), ResponseTimeMiddleware())

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/models/info", s.handleModelsInfo)
		api.POST("/predict/:task", RateLimitMiddleware(s.predictLimiter), s.handlePredict)
		api.POST("/batch_predict/:task", RateLimitMiddleware(s.batchLimiter), s.handleBatchPredict)
		api.GET("/history/:task", s.handleHistory)
		api.DELETE("/history/:task", s.handleClearHistory)
		api.GET("/predictions/stream", s.handlePredictionStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	models := make(map[string]bool)
	for _, d := range s.registry.All() {
		models[d.Endpoint().Task] = d.Loaded()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Models:         models,
		StreamClients:  s.notifier.Clients(),
		LastPrediction: s.notifier.LastEvent(),
	})
}

func (s *Server) handleModelsInfo(c *gin.Context) {
	if cached, ok := s.infoCache.Get(modelsInfoKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	dispatchers := s.registry.All()
	resp := ModelsInfoResponse{Models: make([]ModelInfoDTO, 0, len(dispatchers))}
	for _, d := range dispatchers {
		resp.Models = append(resp.Models, ModelInfoFromDispatcher(d))
	}
	resp.Total = len(resp.Models)
	s.infoCache.Add(modelsInfoKey, resp)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredict(c *gin.Context) {
	d, ok := s.dispatcher(c)
	if !ok {
		return
	}
	rec, err := readRecord(c, s.maxUpload)
	if err != nil {
		s.renderFailure(c, http.StatusBadRequest, err)
		return
	}

	result := d.Dispatch(rec)
	if !result.Success {
		status := http.StatusInternalServerError
		if result.IsInputError() {
			status = http.StatusBadRequest
		}
		logrus.WithFields(logrus.Fields{
			"task":       d.Endpoint().Task,
			"request_id": requestID(c),
			"error":      result.Error,
		}).Warn("prediction failed")
		c.JSON(status, result)
		return
	}

	s.record(c, d.Endpoint().Task, rec, result)
	c.JSON(http.StatusOK, result)
}

// record appends a successful prediction to history and the live feed. A
// history failure is logged and does not fail the request.
func (s *Server) record(c *gin.Context, task string, rec features.Record, result inference.Result) {
	entry := &store.HistoryEntry{
		RequestID:   requestID(c),
		Task:        task,
		Name:        historyName(task, rec),
		Label:       result.Label,
		Prediction:  result.Prediction,
		Probability: result.Probability,
		Demo:        result.Demo,
		CreatedAt:   result.Timestamp.UTC(),
	}
	entry.SetInput(rec)
	if err := s.history.Append(entry); err != nil {
		logrus.WithError(err).WithField("task", task).Warn("append prediction history")
	}
	s.notifier.Broadcast(PredictionEvent{
		Type:        "prediction",
		Task:        task,
		RequestID:   entry.RequestID,
		Label:       result.Label,
		Prediction:  result.Prediction,
		Probability: result.Probability,
		Demo:        result.Demo,
	})
}

func historyName(task string, rec features.Record) string {
	switch task {
	case features.TaskLoan:
		return recordString(rec, "applicant_name")
	case features.TaskLaptop:
		parts := make([]string, 0, 3)
		for _, key := range []string{"brand", "processor_name", "ram_gb"} {
			if v := recordString(rec, key); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, " ")
	}
	return recordString(rec, "name")
}

func recordString(rec features.Record, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (s *Server) handleHistory(c *gin.Context) {
	d, ok := s.dispatcher(c)
	if !ok {
		return
	}
	task := d.Endpoint().Task
	entries, err := s.history.List(task, s.historyCap)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Task: task, Items: entries, Total: len(entries)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	d, ok := s.dispatcher(c)
	if !ok {
		return
	}
	if err := s.history.Clear(d.Endpoint().Task); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": d.Endpoint().Task})
}

func (s *Server) handlePredictionStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 || containsWildcard(s.allowedOrigins) {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("prediction websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("prediction websocket closed")
			} else {
				logrus.WithError(err).Warn("prediction websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) dispatcher(c *gin.Context) (*inference.Dispatcher, bool) {
	task := strings.TrimSpace(c.Param("task"))
	d, ok := s.registry.Get(task)
	if !ok {
		s.renderFailure(c, http.StatusNotFound, fmt.Errorf("unknown task %q", task))
		return nil, false
	}
	return d, true
}

// readRecord decodes a JSON object body, or the form fields of any other body.
func readRecord(c *gin.Context, maxBytes int64) (features.Record, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	switch c.ContentType() {
	case gin.MIMEJSON:
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		rec := features.Record{}
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return features.Record{}, nil
			}
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return rec, nil
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
	}
	return features.FromForm(c.Request.PostForm), nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderFailure answers prediction routes in the result's failure shape.
func (s *Server) renderFailure(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
