package projects

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 200

// Service contains business logic for projects.
type Service struct {
	Repo Repo
}

// Create validates the name and stores a new project.
func (s *Service) Create(ctx context.Context, name, createdBy string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return Project{}, fmt.Errorf("%w: name is too long", ErrInvalidInput)
	}
	p := Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	if strings.TrimSpace(id) == "" {
		return Project{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Project, error) {
	return s.Repo.List(ctx, limit, offset)
}
