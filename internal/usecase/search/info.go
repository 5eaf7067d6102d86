package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/obirdex/internal/domain"
)

// InitInfo returns index initialisation info.
func (s *Service) InitInfo(ctx context.Context) (*domain.InitInfo, error) {
	info, err := s.backend.InitInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("init info: %w", err)
	}
	return info, nil
}

// OramInfo returns index runtime counters.
func (s *Service) OramInfo(ctx context.Context) (*domain.OramInfo, error) {
	info, err := s.backend.OramInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("oram info: %w", err)
	}
	return info, nil
}
