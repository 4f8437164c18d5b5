package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// QuestionRepository defines read access to rubric configuration.
// The pipeline consumes groups and questions read-only.
type QuestionRepository interface {
	GetGroup(ctx context.Context, id uuid.UUID) (*entities.QuestionGroup, error)
	ListActiveByGroup(ctx context.Context, groupID uuid.UUID) ([]entities.Question, error)
	GetByQuestionID(ctx context.Context, questionID string) (*entities.Question, error)
}

// StatusMappingRepository defines access to the platform status -> question
// group mapping maintained by the admin surface.
type StatusMappingRepository interface {
	ListActiveForQa(ctx context.Context) ([]entities.StatusMapping, error)
}

// AgentRepository defines persistence operations for agents
type AgentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Agent, error)
	GetOrCreate(ctx context.Context, username, displayName string, extension *string) (*entities.Agent, error)
	List(ctx context.Context) ([]entities.Agent, error)
}
