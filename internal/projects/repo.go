package projects

import "context"

// Repo defines persistence operations for projects.
type Repo interface {
	Create(ctx context.Context, p Project) error
	Get(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, limit, offset int) ([]Project, error)
}
