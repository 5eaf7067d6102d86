package health

import (
	"context"

	"github.com/kailas-cloud/obirdex/internal/domain"
)

// IndexChecker reaches the index service.
type IndexChecker interface {
	InitInfo(ctx context.Context) (*domain.InitInfo, error)
}

// StorePinger checks the shared session store. Nil when the memory slot is used.
type StorePinger interface {
	Ping(ctx context.Context) error
}
