package types

import (
	"context"

	"jobaudit-engine/internal/domain"
)

// Request is what a Fetcher gets for one search config of an audit.
type Request struct {
	Config    domain.SearchConfig
	RemoteURL string
}

type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.JobLead, error)
}

// Renderer loads a page through the remote browser.
type Renderer interface {
	Render(ctx context.Context, remoteURL, pageURL string) (string, error)
}
