// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"satchel/internal/classifier"
	"satchel/internal/home"
	"satchel/internal/indexer"
	"satchel/internal/search"
	"satchel/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store      *store.Store
	Classifier *classifier.Classifier
	Indexer    *indexer.Orchestrator
	Search     *search.Engine
	Home       *home.Dir
	Logger     *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the content store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// ClassifierFrom extracts the page classifier from context.
func ClassifierFrom(ctx context.Context) *classifier.Classifier {
	if s := ServicesFrom(ctx); s != nil {
		return s.Classifier
	}
	return nil
}

// IndexerFrom extracts the indexing orchestrator from context.
func IndexerFrom(ctx context.Context) *indexer.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Indexer
	}
	return nil
}

// SearchFrom extracts the search engine from context.
func SearchFrom(ctx context.Context) *search.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Search
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
