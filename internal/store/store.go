package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("short id already exists")
)

type Visitor struct {
	VisitorID string `json:"visitorId"`
	City      string `json:"city"`
}

type ShortLink struct {
	ShortID        string    `json:"shortId"`
	OriginalURL    string    `json:"originalUrl"`
	TotalClicks    int64     `json:"totalClicks"`
	UniqueClicks   int64     `json:"uniqueClicks"`
	VisitorDetails []Visitor `json:"visitorDetails"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Visit is one attribution event for a short link.
type Visit struct {
	ShortID   string
	VisitorID string
	City      string
	Ts        time.Time
}

// Store is the single owner of ShortLink records.
//
// RecordVisit applies the whole attribution update atomically and reports
// whether the visitor was seen for the first time on that link.
type Store interface {
	Create(ctx context.Context, link ShortLink) error
	Get(ctx context.Context, shortID string) (ShortLink, error)
	List(ctx context.Context) ([]ShortLink, error)
	RecordVisit(ctx context.Context, v Visit) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
