package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gidiconnect/gidi-ingest/internal/dedup"
)

// Source describes one registered outlet, mirroring the scrape registry so
// provenance labels resolve to something inspectable.
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article is a persisted, deduplicated news item. ExternalURL is unique among
// active rows; the dedup engine enforces it before insert and the index backs
// it up. Rows are never physically deleted: IsActive=false retires them and
// every read path filters on it.
type Article struct {
	ID               string            `gorm:"primaryKey;size:36" json:"id"`
	Title            string            `gorm:"size:512" json:"title"`
	Summary          string            `gorm:"size:600" json:"summary"`
	Category         string            `gorm:"size:64;index" json:"category"`
	ExternalURL      string            `gorm:"size:1024;uniqueIndex" json:"externalUrl"`
	FeaturedImageURL string            `gorm:"size:1024" json:"featuredImageUrl"`
	PublishDate      time.Time         `gorm:"index" json:"publishDate"`
	Source           string            `gorm:"size:128;index" json:"source"`
	IsActive         bool              `gorm:"index" json:"isActive"`
	LastSyncedAt     time.Time         `json:"lastSyncedAt"`
	ExtraData        datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event is event-like content sharing the sink. Its natural key is
// (title, starts_at) rather than the external URL.
type Event struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:512;index:idx_events_title_starts,unique" json:"title"`
	Description  string    `gorm:"size:600" json:"description"`
	Category     string    `gorm:"size:64;index" json:"category"`
	ExternalURL  string    `gorm:"size:1024" json:"externalUrl"`
	ImageURL     string    `gorm:"size:1024" json:"imageUrl"`
	StartsAt     time.Time `gorm:"index:idx_events_title_starts,unique" json:"startsAt"`
	Venue        string    `gorm:"size:256" json:"venue"`
	Source       string    `gorm:"size:128;index" json:"source"`
	IsActive     bool      `gorm:"index" json:"isActive"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpsertResult is the per-item outcome of a sink write. Callers and tests can
// assert on it instead of digging through logs.
type UpsertResult struct {
	URL    string
	Action string // insert / update / error
	Err    error
}

const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionError  = "error"
)

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Source{}, &Article{}, &Event{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureSource registers an outlet row if it is not there yet.
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// ExistingURLs loads the cross-run identity set: external URLs of every
// active article. Loaded once per ingestion run.
func (s *Store) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := s.DB.WithContext(ctx).Model(&Article{}).
		Where("is_active = ?", true).
		Pluck("external_url", &urls).Error; err != nil {
		return nil, fmt.Errorf("load existing urls: %w", err)
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

// toValidUTF8 normalizes scraped text so postgres never sees an invalid byte
// sequence (source pages occasionally carry mixed encodings).
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB cuts s to the column limit by rune count, a second guard
// behind the extractor's own truncation.
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// UpsertArticles writes the deduplicated batch. Conflicts on the external URL
// update the existing row instead of inserting; the write is idempotent
// across repeated runs with the same input. A failed row is recorded in the
// result list and the rest of the batch continues.
func (s *Store) UpsertArticles(ctx context.Context, items []dedup.Item) []UpsertResult {
	now := time.Now().UTC()
	results := make([]UpsertResult, 0, len(items))

	for _, it := range items {
		res := UpsertResult{URL: it.URL}

		var existing Article
		err := s.DB.WithContext(ctx).Where("external_url = ?", it.URL).First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"title":              toValidUTF8(it.Title),
				"summary":            truncateRunesDB(toValidUTF8(it.Summary), 600),
				"category":           it.Category,
				"featured_image_url": it.ImageURL,
				"publish_date":       it.PublishedAt,
				"source":             it.Source,
				"is_active":          true,
				"last_synced_at":     now,
			}
			if err := s.DB.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
				res.Action, res.Err = ActionError, err
				log.Printf("upsert update %s error: %v", it.URL, err)
			} else {
				res.Action = ActionUpdate
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			row := Article{
				ID:               uuid.NewString(),
				Title:            toValidUTF8(it.Title),
				Summary:          truncateRunesDB(toValidUTF8(it.Summary), 600),
				Category:         it.Category,
				ExternalURL:      it.URL,
				FeaturedImageURL: it.ImageURL,
				PublishDate:      it.PublishedAt,
				Source:           it.Source,
				IsActive:         true,
				LastSyncedAt:     now,
				ExtraData: datatypes.JSONMap{
					"ingested_by": "sync",
				},
			}
			if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
				res.Action, res.Err = ActionError, err
				log.Printf("upsert insert %s error: %v", it.URL, err)
			} else {
				res.Action = ActionInsert
			}

		default:
			res.Action, res.Err = ActionError, err
			log.Printf("upsert lookup %s error: %v", it.URL, err)
		}

		results = append(results, res)
	}

	return results
}

// EventInput is the sink-side shape for event-like content.
type EventInput struct {
	Title       string
	Description string
	Category    string
	ExternalURL string
	ImageURL    string
	StartsAt    time.Time
	Venue       string
	Source      string
}

// UpsertEvents mirrors UpsertArticles for event content, keyed on the
// (title, starts_at) natural key.
func (s *Store) UpsertEvents(ctx context.Context, items []EventInput) []UpsertResult {
	now := time.Now().UTC()
	results := make([]UpsertResult, 0, len(items))

	for _, it := range items {
		res := UpsertResult{URL: it.ExternalURL}

		var existing Event
		err := s.DB.WithContext(ctx).
			Where("title = ? AND starts_at = ?", toValidUTF8(it.Title), it.StartsAt).
			First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"description":    truncateRunesDB(toValidUTF8(it.Description), 600),
				"category":       it.Category,
				"external_url":   it.ExternalURL,
				"image_url":      it.ImageURL,
				"venue":          toValidUTF8(it.Venue),
				"source":         it.Source,
				"is_active":      true,
				"last_synced_at": now,
			}
			if err := s.DB.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
				res.Action, res.Err = ActionError, err
			} else {
				res.Action = ActionUpdate
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			row := Event{
				ID:           uuid.NewString(),
				Title:        toValidUTF8(it.Title),
				Description:  truncateRunesDB(toValidUTF8(it.Description), 600),
				Category:     it.Category,
				ExternalURL:  it.ExternalURL,
				ImageURL:     it.ImageURL,
				StartsAt:     it.StartsAt,
				Venue:        toValidUTF8(it.Venue),
				Source:       it.Source,
				IsActive:     true,
				LastSyncedAt: now,
			}
			if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
				res.Action, res.Err = ActionError, err
			} else {
				res.Action = ActionInsert
			}

		default:
			res.Action, res.Err = ActionError, err
		}

		if res.Err != nil {
			log.Printf("upsert event %q error: %v", it.Title, res.Err)
		}
		results = append(results, res)
	}

	return results
}

// DeactivateArticle retires a row logically; read paths filter on is_active.
func (s *Store) DeactivateArticle(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&Article{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

const (
	listCacheTTL = 5 * time.Minute
	fallbackTTL  = 24 * time.Hour
)

// Read-path source markers surfaced in the API envelope.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

func listCacheKey(category string, limit int) string {
	return fmt.Sprintf("articles:list:%s:%d", category, limit)
}

func fallbackKey(category string, limit int) string {
	return fmt.Sprintf("articles:fallback:%s:%d", category, limit)
}

// ListArticles returns active articles newest first, with a short-TTL redis
// cache in front of postgres. When postgres is unreachable the long-TTL
// fallback copy is served instead: consumers degrade to staleness, never to
// emptiness. The second return value says where the data came from.
func (s *Store) ListArticles(ctx context.Context, category string, limit int) ([]Article, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cacheKey := listCacheKey(category, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, SourceCache, nil
			}
		}
	}

	var list []Article
	db := s.DB.WithContext(ctx).Model(&Article{}).Where("is_active = ?", true)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if err := db.Order("publish_date DESC").Limit(limit).Find(&list).Error; err != nil {
		// Degraded mode: serve the stale fallback copy if we have one.
		if s.Redis != nil {
			if bs, ferr := s.Redis.Get(ctx, fallbackKey(category, limit)).Bytes(); ferr == nil {
				var stale []Article
				if jerr := json.Unmarshal(bs, &stale); jerr == nil {
					log.Printf("list articles degraded to fallback copy: %v", err)
					return stale, SourceFallback, nil
				}
			}
		}
		return nil, "", err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
			_ = s.Redis.Set(ctx, fallbackKey(category, limit), bs, fallbackTTL).Err()
		}
	}

	return list, SourceLive, nil
}
