package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
)

// StatsStore implements the statistics persistence slice on GORM.
// A store is bound to one db handle; GormTransactor hands out stores
// bound to a transaction.
type StatsStore struct {
	db *gorm.DB
}

// NewStatsStore creates a store on the given connection
func NewStatsStore(db *gorm.DB) *StatsStore {
	return &StatsStore{db: db}
}

// GetCallByCallID retrieves a call record by platform call ID
func (s *StatsStore) GetCallByCallID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	var call entities.CallRecord
	if err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// SetCallQaScore updates the cached score on a call; nil clears it
func (s *StatsStore) SetCallQaScore(ctx context.Context, id uuid.UUID, score *int) error {
	return s.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"qa_score":   score,
			"updated_at": time.Now(),
		}).Error
}

// GetTranscriptByCallID retrieves the transcript for a call
func (s *StatsStore) GetTranscriptByCallID(ctx context.Context, callID string) (*entities.Transcript, error) {
	var transcript entities.Transcript
	if err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&transcript).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transcript, nil
}

// SaveQaAnalysis replaces the transcript's analysis; nil clears it
func (s *StatsStore) SaveQaAnalysis(ctx context.Context, callID string, analysis *entities.QaAnalysis) error {
	result := s.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"qa_analysis": analysisValue(analysis),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func analysisValue(analysis *entities.QaAnalysis) interface{} {
	if analysis == nil {
		return gorm.Expr("NULL")
	}
	return analysis
}

// GetOrCreateCallStats finds or lazily creates the aggregate row for an
// (agent, group) pair
func (s *StatsStore) GetOrCreateCallStats(ctx context.Context, agentID, groupID uuid.UUID) (*entities.CallStats, error) {
	row := entities.CallStats{
		ID:              uuid.New(),
		AgentID:         agentID,
		QuestionGroupID: groupID,
		LastUpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "question_group_id"}},
			DoNothing: true,
		}).
		Create(&row).Error; err != nil {
		return nil, err
	}

	var stats entities.CallStats
	if err := s.db.WithContext(ctx).
		Where("agent_id = ? AND question_group_id = ?", agentID, groupID).
		First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// AddCallStatsDelta adjusts the aggregate counters, flooring each at zero
func (s *StatsStore) AddCallStatsDelta(ctx context.Context, agentID, groupID uuid.UUID, dAnalyzed, dScore, dDuration int) error {
	result := s.db.WithContext(ctx).
		Model(&entities.CallStats{}).
		Where("agent_id = ? AND question_group_id = ?", agentID, groupID).
		Updates(map[string]interface{}{
			"analyzed_count":  gorm.Expr("GREATEST(0, analyzed_count + ?)", dAnalyzed),
			"total_score":     gorm.Expr("GREATEST(0, total_score + ?)", dScore),
			"total_duration":  gorm.Expr("GREATEST(0, total_duration + ?)", dDuration),
			"last_updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetOrCreateQuestionStats finds or lazily creates the tally row for a question
func (s *StatsStore) GetOrCreateQuestionStats(ctx context.Context, questionID string, groupID uuid.UUID) (*entities.QuestionStats, error) {
	row := entities.QuestionStats{
		ID:            uuid.New(),
		QuestionID:    questionID,
		GroupID:       groupID,
		LastUpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_id"}},
			DoNothing: true,
		}).
		Create(&row).Error; err != nil {
		return nil, err
	}

	var stats entities.QuestionStats
	if err := s.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// AddQuestionStatsDelta adjusts the answer tallies, flooring each at zero
func (s *StatsStore) AddQuestionStatsDelta(ctx context.Context, questionID string, dTak, dNie, dTotal int) error {
	result := s.db.WithContext(ctx).
		Model(&entities.QuestionStats{}).
		Where("question_id = ?", questionID).
		Updates(map[string]interface{}{
			"tak_count":       gorm.Expr("GREATEST(0, tak_count + ?)", dTak),
			"nie_count":       gorm.Expr("GREATEST(0, nie_count + ?)", dNie),
			"total_count":     gorm.Expr("GREATEST(0, total_count + ?)", dTotal),
			"last_updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GormTransactor runs statistics mutations in one database transaction
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a transactor on the given connection
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// Atomically runs fn against a store bound to a single transaction
func (t *GormTransactor) Atomically(ctx context.Context, fn func(repositories.StatsStore) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStatsStore(tx))
	})
}

// StatsReadRepository serves the aggregate read queries
type StatsReadRepository struct {
	db *gorm.DB
}

// NewStatsReadRepository creates a new stats read repository
func NewStatsReadRepository(db *gorm.DB) *StatsReadRepository {
	return &StatsReadRepository{db: db}
}

// ListCallStats retrieves every (agent, group) aggregate
func (r *StatsReadRepository) ListCallStats(ctx context.Context) ([]entities.CallStats, error) {
	var stats []entities.CallStats
	if err := r.db.WithContext(ctx).Order("last_updated_at DESC").Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ListCallStatsByAgent retrieves the aggregates of one agent
func (r *StatsReadRepository) ListCallStatsByAgent(ctx context.Context, agentID uuid.UUID) ([]entities.CallStats, error) {
	var stats []entities.CallStats
	if err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("last_updated_at DESC").
		Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ListQuestionStats retrieves every question tally
func (r *StatsReadRepository) ListQuestionStats(ctx context.Context) ([]entities.QuestionStats, error) {
	var stats []entities.QuestionStats
	if err := r.db.WithContext(ctx).Order("question_id ASC").Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// ListQuestionStatsByGroup retrieves the tallies of one group
func (r *StatsReadRepository) ListQuestionStatsByGroup(ctx context.Context, groupID uuid.UUID) ([]entities.QuestionStats, error) {
	var stats []entities.QuestionStats
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("question_id ASC").
		Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
