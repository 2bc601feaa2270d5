package database

import (
	"context"
	"time"
)

// FetchRecord is the result of one fetch attempt for one endpoint.
type FetchRecord struct {
	Key       string
	Name      string
	Kind      string
	URL       string
	Status    string
	Format    string
	ItemCount int
	Skipped   int
	Error     string
	FetchedAt time.Time
	Success   bool
}

type Source struct {
	Key           string     `json:"key"`
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	URL           string     `json:"url"`
	Status        string     `json:"status"`
	Format        string     `json:"format,omitempty"`
	ItemCount     int        `json:"itemCount"`
	SkippedCount  int        `json:"skippedCount"`
	LastError     string     `json:"lastError,omitempty"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	FetchCount    int        `json:"fetchCount"`
	FailureCount  int        `json:"failureCount"`
}

type SourceRepository interface {
	RecordFetch(ctx context.Context, record FetchRecord) error
	GetSource(ctx context.Context, key string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)
}
