package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linktally/internal/cache"
	"github.com/roniherschmann/linktally/internal/metrics"
	"github.com/roniherschmann/linktally/internal/shortid"
	"github.com/roniherschmann/linktally/internal/store"
)

var (
	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict
)

// createAttempts bounds id regeneration when the store reports a taken id.
const createAttempts = 5

type Service struct {
	store    store.Store
	targets  *cache.Targets
	idLength int
	now      func() time.Time
}

// NewService wires the service to s. targets may be nil to disable caching.
func NewService(s store.Store, targets *cache.Targets, idLength int) *Service {
	return &Service{
		store:    s,
		targets:  targets,
		idLength: shortid.ClampLength(idLength),
		now:      time.Now,
	}
}

// Create stores originalURL verbatim under a freshly generated short id.
func (s *Service) Create(ctx context.Context, originalURL string) (store.ShortLink, error) {
	for attempt := 1; ; attempt++ {
		id, err := shortid.Generate(s.idLength)
		if err != nil {
			return store.ShortLink{}, fmt.Errorf("generate short id: %w", err)
		}
		now := s.now().UTC()
		link := store.ShortLink{
			ShortID:        id,
			OriginalURL:    originalURL,
			VisitorDetails: []store.Visitor{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = s.store.Create(ctx, link)
		if err == nil {
			s.targets.Set(id, originalURL)
			return link, nil
		}
		if !errors.Is(err, ErrConflict) {
			metrics.StoreErrors.WithLabelValues("create").Inc()
			return store.ShortLink{}, fmt.Errorf("create link: %w", err)
		}
		metrics.IDCollisions.Inc()
		log.Warn().Str("short_id", id).Int("attempt", attempt).Msg("short id collision")
		if attempt == createAttempts {
			return store.ShortLink{}, err
		}
	}
}

// Resolve returns the full record for shortID. It never counts a click.
func (s *Service) Resolve(ctx context.Context, shortID string) (store.ShortLink, error) {
	link, err := s.store.Get(ctx, shortID)
	if err != nil {
		return store.ShortLink{}, s.wrap("get", err)
	}
	return link, nil
}

// Target returns only the redirect target, consulting the cache first.
func (s *Service) Target(ctx context.Context, shortID string) (string, error) {
	if !shortid.Valid(shortID) {
		return "", ErrNotFound
	}
	if v, ok := s.targets.Get(shortID); ok {
		metrics.CacheHit.WithLabelValues("target").Inc()
		return v, nil
	}
	metrics.CacheMiss.WithLabelValues("target").Inc()
	link, err := s.Resolve(ctx, shortID)
	if err != nil {
		return "", err
	}
	s.targets.Set(shortID, link.OriginalURL)
	return link.OriginalURL, nil
}

// Attribute records one click on shortID and reports whether visitorID was
// seen for the first time. Every call bumps TotalClicks; the first call per
// visitorID also bumps UniqueClicks and appends the visitor. It does not
// read the record back, so its cost does not grow with the visitor list.
func (s *Service) Attribute(ctx context.Context, shortID, visitorID, city string) (bool, error) {
	novel, err := s.store.RecordVisit(ctx, store.Visit{
		ShortID:   shortID,
		VisitorID: visitorID,
		City:      city,
		Ts:        s.now(),
	})
	if err != nil {
		return false, s.wrap("record_visit", err)
	}
	if novel {
		metrics.Visits.WithLabelValues("unique").Inc()
	} else {
		metrics.Visits.WithLabelValues("repeat").Inc()
	}
	return novel, nil
}

// RecordVisit is Attribute followed by a full read of the updated record,
// visitor list included.
func (s *Service) RecordVisit(ctx context.Context, shortID, visitorID, city string) (store.ShortLink, error) {
	if _, err := s.Attribute(ctx, shortID, visitorID, city); err != nil {
		return store.ShortLink{}, err
	}
	return s.Resolve(ctx, shortID)
}

func (s *Service) List(ctx context.Context) ([]store.ShortLink, error) {
	links, err := s.store.List(ctx)
	if err != nil {
		return nil, s.wrap("list", err)
	}
	return links, nil
}

// PrewarmCache loads the targets of the n most clicked links.
func (s *Service) PrewarmCache(ctx context.Context, n int) error {
	if s.targets == nil || n <= 0 {
		return nil
	}
	links, err := s.List(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].TotalClicks > links[j].TotalClicks
	})
	if len(links) > n {
		links = links[:n]
	}
	for _, l := range links {
		s.targets.Set(l.ShortID, l.OriginalURL)
	}
	s.targets.Wait()
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w", op, err)
}
