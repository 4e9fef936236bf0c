package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/CompetitorNews/internal/logger"
	"github.com/LJTian/CompetitorNews/internal/news"
	"github.com/LJTian/CompetitorNews/internal/pipeline"
	"github.com/LJTian/CompetitorNews/internal/storage"
)

type Runner interface {
	Run(ctx context.Context, topic string) (news.Batch, error)
}

type Reader interface {
	LatestBatch(ctx context.Context, topic string) (news.Batch, error)
	ListTopics(ctx context.Context) ([]string, error)
}

type Server struct {
	runner Runner
	reader Reader
	log    *slog.Logger
}

func NewServer(runner Runner, reader Reader, log *slog.Logger) *Server {
	return &Server{runner: runner, reader: reader, log: logger.OrDiscard(log)}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/news", s.fetchNews)
		v1.GET("/news", s.latestNews)
		v1.GET("/topics", s.listTopics)
	}
}

// fetchRequest 同时支持 JSON 与表单提交
type fetchRequest struct {
	Topic string `json:"topic" form:"user_input"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) fetchNews(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		fail(c, http.StatusBadRequest, "invalid_topic", "Please input valid value.")
		return
	}

	batch, err := s.runner.Run(c.Request.Context(), topic)
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		fail(c, http.StatusNotFound, "not_found", "No news data found")
		return
	case err != nil:
		s.log.Error("run pipeline", slog.String("topic", topic), slog.Any("err", err))
		fail(c, http.StatusInternalServerError, "internal_error", "An error occurred")
		return
	}

	ok(c, batch)
}

func (s *Server) latestNews(c *gin.Context) {
	topic := strings.TrimSpace(c.Query("topic"))
	if topic == "" {
		fail(c, http.StatusBadRequest, "invalid_topic", "Please input valid value.")
		return
	}

	batch, err := s.reader.LatestBatch(c.Request.Context(), topic)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", "No news data found")
		return
	case err != nil:
		s.log.Error("latest batch", slog.String("topic", topic), slog.Any("err", err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	ok(c, batch)
}

func (s *Server) listTopics(c *gin.Context) {
	topics, err := s.reader.ListTopics(c.Request.Context())
	if err != nil {
		s.log.Error("list topics", slog.Any("err", err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if topics == nil {
		topics = []string{}
	}
	ok(c, topics)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
