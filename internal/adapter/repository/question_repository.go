package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// QuestionRepository handles rubric configuration reads
type QuestionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// GetGroup retrieves a question group by ID
func (r *QuestionRepository) GetGroup(ctx context.Context, id uuid.UUID) (*entities.QuestionGroup, error) {
	var group entities.QuestionGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// ListActiveByGroup retrieves the active questions of a group in rubric order
func (r *QuestionRepository) ListActiveByGroup(ctx context.Context, groupID uuid.UUID) ([]entities.Question, error) {
	var questions []entities.Question
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Order("sort_order ASC, question_id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// GetByQuestionID retrieves a question by its stable rubric ID
func (r *QuestionRepository) GetByQuestionID(ctx context.Context, questionID string) (*entities.Question, error) {
	var question entities.Question
	if err := r.db.WithContext(ctx).Where("question_id = ?", questionID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &question, nil
}

// StatusMappingRepository handles platform status mappings
type StatusMappingRepository struct {
	db *gorm.DB
}

// NewStatusMappingRepository creates a new status mapping repository
func NewStatusMappingRepository(db *gorm.DB) *StatusMappingRepository {
	return &StatusMappingRepository{db: db}
}

// ListActiveForQa retrieves the statuses whose calls enter the pipeline
func (r *StatusMappingRepository) ListActiveForQa(ctx context.Context) ([]entities.StatusMapping, error) {
	var mappings []entities.StatusMapping
	if err := r.db.WithContext(ctx).
		Where("is_active_for_qa = ?", true).
		Order("status_id ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// AgentRepository handles agent persistence
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByID retrieves an agent by ID
func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Agent, error) {
	var agent entities.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetOrCreate finds an agent by username, creating it on first sight.
// Display name and extension refresh when the platform reports new values.
func (r *AgentRepository) GetOrCreate(ctx context.Context, username, displayName string, extension *string) (*entities.Agent, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}

	var agent entities.Agent
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&agent).Error
	if err == nil {
		updates := map[string]interface{}{}
		if displayName != "" && displayName != agent.DisplayName {
			updates["display_name"] = displayName
			agent.DisplayName = displayName
		}
		if extension != nil && (agent.Extension == nil || *agent.Extension != *extension) {
			updates["extension"] = *extension
			agent.Extension = extension
		}
		if len(updates) > 0 {
			if err := r.db.WithContext(ctx).Model(&agent).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &agent, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	agent = entities.Agent{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: displayName,
		Extension:   extension,
	}
	if agent.DisplayName == "" {
		agent.DisplayName = username
	}
	if err := r.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// List retrieves all agents ordered by display name
func (r *AgentRepository) List(ctx context.Context) ([]entities.Agent, error) {
	var agents []entities.Agent
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}
