package agent

import (
	"context"
	"fmt"
	"strings"
)

// Service exposes business-level agent directory operations.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new agent.
func (s *Service) Create(ctx context.Context, params CreateParams) (Agent, error) {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	if params.FirstName == "" || params.LastName == "" {
		return Agent{}, fmt.Errorf("agent: first and last name required")
	}
	return s.repo.Create(ctx, params)
}

// GetByID returns the agent for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Agent, error) {
	if id == "" {
		return Agent{}, fmt.Errorf("agent: missing id")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit agents, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Agent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.List(ctx, limit)
}
