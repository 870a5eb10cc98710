// Package httpapi serves a read-only JSON view over the pipeline stores.
// There is no write surface; every mutation happens through the CLI stages.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/globaltime"
	"lit.watch/firehose/internal/working"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

var errEntryNotFound = errors.New("entry not found")

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	stores *db.Stores
	pcfg   *config.PipelineConfig
	logger zerolog.Logger
	opts   Options
}

type workingItem struct {
	ID             string   `json:"id"`
	Topic          string   `json:"topic"`
	FeedName       string   `json:"feed_name"`
	Title          string   `json:"title"`
	Link           string   `json:"link,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Authors        string   `json:"authors,omitempty"`
	DOI            *string  `json:"doi,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	Status         string   `json:"status"`
	RankScore      *float64 `json:"rank_score,omitempty"`
	RankReasoning  *string  `json:"rank_reasoning,omitempty"`
	LLMSummary     *string  `json:"llm_summary,omitempty"`
	PaperQASummary *string  `json:"paper_qa_summary,omitempty"`
}

type historyItem struct {
	EntryID        string    `json:"entry_id"`
	FeedName       string    `json:"feed_name"`
	Topics         string    `json:"topics"`
	Title          string    `json:"title"`
	Link           string    `json:"link,omitempty"`
	DOI            *string   `json:"doi,omitempty"`
	PublishedDate  string    `json:"published_date,omitempty"`
	MatchedDate    time.Time `json:"matched_date"`
	LLMSummary     *string   `json:"llm_summary,omitempty"`
	PaperQASummary *string   `json:"paper_qa_summary,omitempty"`
}

type topicSummary struct {
	Topic    string           `json:"topic"`
	ByStatus map[string]int64 `json:"by_status"`
	Total    int64            `json:"total"`
}

type statsResponse struct {
	FeedEntries    int64            `json:"feed_entries"`
	MatchedEntries int64            `json:"matched_entries"`
	WorkingEntries int64            `json:"working_entries"`
	ByStatus       map[string]int64 `json:"by_status"`
	LastMatchedAt  *time.Time       `json:"last_matched_at,omitempty"`
}

func NewServer(stores *db.Stores, pcfg *config.PipelineConfig, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		stores: stores,
		pcfg:   pcfg,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.stores == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/topics", s.handleTopics)
	api.GET("/entries", s.handleEntries)
	api.GET("/history", s.handleHistory)
	api.GET("/history/:entry_id", s.handleHistoryDetail)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("firehose api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("firehose api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "firehose",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.queryStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleTopics(c echo.Context) error {
	topics, err := s.pcfg.AvailableTopics()
	if err != nil {
		s.logger.Error().Err(err).Msg("list topics failed")
		return internalError(c, "Failed to list topics")
	}

	items := make([]topicSummary, 0, len(topics))
	for _, topic := range topics {
		summary, err := s.queryTopicSummary(c.Request().Context(), topic)
		if err != nil {
			s.logger.Error().Err(err).Str("topic", topic).Msg("query topic summary failed")
			return internalError(c, "Failed to load topic summary")
		}
		items = append(items, summary)
	}

	return success(c, map[string]any{
		"items": items,
	})
}

func (s *Server) handleEntries(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	status := strings.TrimSpace(strings.ToLower(c.QueryParam("status")))
	if status != "" && !working.ValidStatus(status) {
		return failValidation(c, map[string]string{"status": "unknown status"})
	}
	topic := strings.TrimSpace(c.QueryParam("topic"))

	total, items, err := s.queryWorkingList(c.Request().Context(), topic, status, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("query working entries failed")
		return internalError(c, "Failed to load entries")
	}

	return success(c, map[string]any{
		"items":      items,
		"pagination": paginationBlock(page, pageSize, total),
		"filters": map[string]any{
			"topic":  topic,
			"status": status,
		},
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	topic := strings.TrimSpace(c.QueryParam("topic"))
	query := strings.TrimSpace(c.QueryParam("q"))

	total, items, err := s.queryHistoryList(c.Request().Context(), topic, query, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("query history failed")
		return internalError(c, "Failed to load history")
	}

	return success(c, map[string]any{
		"items":      items,
		"pagination": paginationBlock(page, pageSize, total),
		"filters": map[string]any{
			"topic": topic,
			"q":     query,
		},
	})
}

func (s *Server) handleHistoryDetail(c echo.Context) error {
	entryID := strings.TrimSpace(c.Param("entry_id"))
	if entryID == "" {
		return failValidation(c, map[string]string{"entry_id": "is required"})
	}

	item, err := s.queryHistoryDetail(c.Request().Context(), entryID)
	if err != nil {
		if errors.Is(err, errEntryNotFound) {
			return failNotFound(c, "Entry not found")
		}
		s.logger.Error().Err(err).Str("entry_id", entryID).Msg("query history detail failed")
		return internalError(c, "Failed to load entry")
	}
	return success(c, item)
}

func (s *Server) queryWorkingList(ctx context.Context, topic, status string, page, pageSize int) (int64, []workingItem, error) {
	const countQuery = `
SELECT COUNT(*)
FROM entries
WHERE (? = '' OR topic = ?)
  AND (? = '' OR status = ?)
`
	var total int64
	if err := s.stores.Working.QueryRow(ctx, countQuery, topic, topic, status, status).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count working entries: %w", err)
	}

	offset := (page - 1) * pageSize

	const rowsQuery = `
SELECT
	id, topic, feed_name, title, link, summary, authors, doi,
	published_date, status, rank_score, rank_reasoning,
	llm_summary, paper_qa_summary
FROM entries
WHERE (? = '' OR topic = ?)
  AND (? = '' OR status = ?)
ORDER BY rank_score IS NULL, rank_score DESC, discovered_date DESC, id
LIMIT ?
OFFSET ?
`
	rows, err := s.stores.Working.Query(ctx, rowsQuery, topic, topic, status, status, pageSize, offset)
	if err != nil {
		return 0, nil, fmt.Errorf("query working entries: %w", err)
	}
	defer rows.Close()

	items := make([]workingItem, 0, pageSize)
	for rows.Next() {
		var row workingItem
		if err := rows.Scan(
			&row.ID,
			&row.Topic,
			&row.FeedName,
			&row.Title,
			&row.Link,
			&row.Summary,
			&row.Authors,
			&row.DOI,
			&row.PublishedDate,
			&row.Status,
			&row.RankScore,
			&row.RankReasoning,
			&row.LLMSummary,
			&row.PaperQASummary,
		); err != nil {
			return 0, nil, fmt.Errorf("scan working entry: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate working entries: %w", err)
	}
	return total, items, nil
}

func (s *Server) queryHistoryList(ctx context.Context, topic, query string, page, pageSize int) (int64, []historyItem, error) {
	topicPattern := ""
	if topic != "" {
		topicPattern = "%" + topic + "%"
	}
	search := ""
	if query != "" {
		search = "%" + query + "%"
	}

	const countQuery = `
SELECT COUNT(*)
FROM matched_entries
WHERE (? = '' OR topics LIKE ?)
  AND (? = '' OR title LIKE ?)
`
	var total int64
	if err := s.stores.History.QueryRow(ctx, countQuery, topicPattern, topicPattern, search, search).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count matched entries: %w", err)
	}

	offset := (page - 1) * pageSize

	const rowsQuery = `
SELECT
	entry_id, feed_name, topics, title, link, doi,
	published_date, matched_date, llm_summary, paper_qa_summary
FROM matched_entries
WHERE (? = '' OR topics LIKE ?)
  AND (? = '' OR title LIKE ?)
ORDER BY matched_date DESC, entry_id
LIMIT ?
OFFSET ?
`
	rows, err := s.stores.History.Query(ctx, rowsQuery, topicPattern, topicPattern, search, search, pageSize, offset)
	if err != nil {
		return 0, nil, fmt.Errorf("query matched entries: %w", err)
	}
	defer rows.Close()

	items := make([]historyItem, 0, pageSize)
	for rows.Next() {
		var row historyItem
		if err := rows.Scan(
			&row.EntryID,
			&row.FeedName,
			&row.Topics,
			&row.Title,
			&row.Link,
			&row.DOI,
			&row.PublishedDate,
			&row.MatchedDate,
			&row.LLMSummary,
			&row.PaperQASummary,
		); err != nil {
			return 0, nil, fmt.Errorf("scan matched entry: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate matched entries: %w", err)
	}
	return total, items, nil
}

func (s *Server) queryHistoryDetail(ctx context.Context, entryID string) (*historyItem, error) {
	const q = `
SELECT
	entry_id, feed_name, topics, title, link, doi,
	published_date, matched_date, llm_summary, paper_qa_summary
FROM matched_entries
WHERE entry_id = ?
`
	var row historyItem
	err := s.stores.History.QueryRow(ctx, q, entryID).Scan(
		&row.EntryID,
		&row.FeedName,
		&row.Topics,
		&row.Title,
		&row.Link,
		&row.DOI,
		&row.PublishedDate,
		&row.MatchedDate,
		&row.LLMSummary,
		&row.PaperQASummary,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, errEntryNotFound
		}
		return nil, fmt.Errorf("query matched entry: %w", err)
	}
	return &row, nil
}

func (s *Server) queryTopicSummary(ctx context.Context, topic string) (topicSummary, error) {
	const q = `
SELECT status, COUNT(*)
FROM entries
WHERE topic = ?
GROUP BY status
ORDER BY status
`
	rows, err := s.stores.Working.Query(ctx, q, topic)
	if err != nil {
		return topicSummary{}, fmt.Errorf("query topic status counts: %w", err)
	}
	defer rows.Close()

	summary := topicSummary{
		Topic:    topic,
		ByStatus: map[string]int64{},
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return topicSummary{}, fmt.Errorf("scan topic status count: %w", err)
		}
		summary.ByStatus[status] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return topicSummary{}, fmt.Errorf("iterate topic status counts: %w", err)
	}
	return summary, nil
}

func (s *Server) queryStats(ctx context.Context) (*statsResponse, error) {
	var stats statsResponse

	if err := s.stores.Dedup.QueryRow(ctx, `SELECT COUNT(*) FROM feed_entries`).Scan(&stats.FeedEntries); err != nil {
		return nil, fmt.Errorf("count feed entries: %w", err)
	}
	if err := s.stores.History.QueryRow(
		ctx, `SELECT COUNT(*), MAX(matched_date) FROM matched_entries`,
	).Scan(&stats.MatchedEntries, &stats.LastMatchedAt); err != nil {
		return nil, fmt.Errorf("count matched entries: %w", err)
	}
	if err := s.stores.Working.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&stats.WorkingEntries); err != nil {
		return nil, fmt.Errorf("count working entries: %w", err)
	}

	const statusQuery = `
SELECT status, COUNT(*)
FROM entries
GROUP BY status
ORDER BY status
`
	rows, err := s.stores.Working.Query(ctx, statusQuery)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	stats.ByStatus = map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return &stats, nil
}

func paginationBlock(page, pageSize int, total int64) map[string]any {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return map[string]any{
		"page":        page,
		"page_size":   pageSize,
		"total_items": total,
		"total_pages": totalPages,
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
