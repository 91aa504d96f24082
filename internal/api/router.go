package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gidiconnect/gidi-ingest/internal/pipeline"
	"github.com/gidiconnect/gidi-ingest/internal/storage"
)

// NewsStore is the store surface the API reads from and administers through.
type NewsStore interface {
	ListArticles(ctx context.Context, category string, limit int) ([]storage.Article, string, error)
	UpsertEvents(ctx context.Context, items []storage.EventInput) []storage.UpsertResult
	DeactivateArticle(ctx context.Context, id string) error
}

// SyncRunner triggers an ingestion pass on demand.
type SyncRunner interface {
	Run(ctx context.Context, category string, limit int) (*pipeline.Report, error)
}

type Server struct {
	store  NewsStore
	runner SyncRunner
}

func NewServer(store NewsStore, runner SyncRunner) *Server {
	return &Server{store: store, runner: runner}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.DELETE("/news/:id", s.deactivateNews)
		v1.POST("/sync", s.runSync)
		v1.POST("/events", s.upsertEvents)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// envelope is the response shape every consumer reads: source tells them
// whether they are looking at live, cached or degraded (stale) data.
func envelope(c *gin.Context, status int, success bool, data any, source string) {
	c.JSON(status, gin.H{
		"success":   success,
		"data":      data,
		"source":    source,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	return limit
}

func (s *Server) listNews(c *gin.Context) {
	category := c.Query("category")
	limit := queryLimit(c)

	items, source, err := s.store.ListArticles(c.Request.Context(), category, limit)
	if err != nil {
		// The store already tried its fallback copy; there is truly nothing.
		envelope(c, http.StatusInternalServerError, false, []storage.Article{}, "")
		return
	}

	envelope(c, http.StatusOK, true, items, source)
}

// deactivateNews retires an article logically; it stops showing up in reads
// but the row stays for audit.
func (s *Server) deactivateNews(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeactivateArticle(c.Request.Context(), id); err != nil {
		envelope(c, http.StatusInternalServerError, false, nil, "")
		return
	}
	envelope(c, http.StatusOK, true, gin.H{"id": id, "active": false}, storage.SourceLive)
}

// eventPayload is the JSON shape the events endpoint accepts. Events come
// from partner feeds rather than the scrape pipeline, so they enter through
// the API.
type eventPayload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ExternalURL string    `json:"externalUrl"`
	ImageURL    string    `json:"imageUrl"`
	StartsAt    time.Time `json:"startsAt"`
	Venue       string    `json:"venue"`
	Source      string    `json:"source"`
}

// upsertEvents writes a batch of events keyed on (title, starts_at): posting
// the same batch twice updates rows instead of duplicating them.
func (s *Server) upsertEvents(c *gin.Context) {
	var payload []eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload) == 0 {
		envelope(c, http.StatusBadRequest, false, gin.H{"error": "expected a non-empty json array of events"}, "")
		return
	}

	batch := make([]storage.EventInput, 0, len(payload))
	for _, p := range payload {
		if p.Title == "" || p.StartsAt.IsZero() {
			envelope(c, http.StatusBadRequest, false, gin.H{"error": "every event needs a title and a startsAt"}, "")
			return
		}
		batch = append(batch, storage.EventInput{
			Title:       p.Title,
			Description: p.Description,
			Category:    p.Category,
			ExternalURL: p.ExternalURL,
			ImageURL:    p.ImageURL,
			StartsAt:    p.StartsAt,
			Venue:       p.Venue,
			Source:      p.Source,
		})
	}

	var inserted, updated, failed int
	for _, res := range s.store.UpsertEvents(c.Request.Context(), batch) {
		switch res.Action {
		case storage.ActionInsert:
			inserted++
		case storage.ActionUpdate:
			updated++
		default:
			failed++
		}
	}
	envelope(c, http.StatusOK, failed == 0, gin.H{
		"inserted": inserted,
		"updated":  updated,
		"failed":   failed,
	}, storage.SourceLive)
}

// runSync triggers an ingestion pass. If the pipeline cannot run (store down
// mid-request, for example) the response degrades to previously persisted or
// cached data rather than an error, so consumers never see emptiness when any
// prior data exists.
func (s *Server) runSync(c *gin.Context) {
	category := c.Query("category")
	limit := queryLimit(c)

	rep, err := s.runner.Run(c.Request.Context(), category, limit)
	if err == nil {
		envelope(c, http.StatusOK, true, rep, storage.SourceLive)
		return
	}

	items, source, lerr := s.store.ListArticles(c.Request.Context(), category, limit)
	if lerr != nil {
		envelope(c, http.StatusInternalServerError, false, []storage.Article{}, "")
		return
	}
	envelope(c, http.StatusOK, true, items, source)
}
