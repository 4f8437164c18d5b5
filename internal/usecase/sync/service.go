package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/pkg/config"
	"github.com/inkaso/callqa/pkg/daktela"
)

// timeLayouts covers the timestamp formats the call platform has been
// observed to return.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ActivityLister is the part of the platform client the sync needs.
type ActivityLister interface {
	IsConfigured() bool
	ListActivities(ctx context.Context, statusIDs []string, take int) ([]daktela.Activity, int, error)
}

// Result summarizes one sync pass.
type Result struct {
	Skipped bool `json:"skipped"`
	Synced  int  `json:"synced"`
	Created int  `json:"created"`
	Total   int  `json:"total"`
}

// Service imports new calls from the call platform. Each pass lists
// activities tagged with a QA-active status, maps them to call records and
// inserts the ones not seen before in synced status.
type Service struct {
	callRepo   repositories.CallRepository
	agentRepo  repositories.AgentRepository
	statusRepo repositories.StatusMappingRepository
	platform   ActivityLister
	cfg        config.SyncConfig
	logger     *zap.Logger

	stopChan chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
}

func NewService(
	callRepo repositories.CallRepository,
	agentRepo repositories.AgentRepository,
	statusRepo repositories.StatusMappingRepository,
	platform ActivityLister,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		callRepo:   callRepo,
		agentRepo:  agentRepo,
		statusRepo: statusRepo,
		platform:   platform,
		cfg:        cfg,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the periodic sync loop
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Info("👷 Call sync started", zap.Duration("interval", s.cfg.Interval))

		for {
			select {
			case <-ticker.C:
				if _, err := s.SyncOnce(context.Background()); err != nil {
					s.logger.Error("❌ Call sync failed", zap.Error(err))
				}
			case <-s.stopChan:
				s.logger.Info("🛑 Call sync stopped")
				return
			}
		}
	}()
}

// Stop halts the sync loop
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	s.wg.Wait()
}

// SyncOnce runs a single sync pass
func (s *Service) SyncOnce(ctx context.Context) (*Result, error) {
	if !s.platform.IsConfigured() {
		s.logger.Debug("⏭️ Call platform not configured, skipping sync")
		return &Result{Skipped: true}, nil
	}

	mappings, err := s.statusRepo.ListActiveForQa(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load status mappings: %w", err)
	}
	if len(mappings) == 0 {
		s.logger.Info("⏭️ No active statuses configured, skipping sync")
		return &Result{}, nil
	}

	statusIDs := make([]string, 0, len(mappings))
	groupByStatus := make(map[string]*uuid.UUID, len(mappings))
	for i := range mappings {
		statusIDs = append(statusIDs, mappings[i].StatusID)
		groupByStatus[mappings[i].StatusID] = mappings[i].QuestionGroupID
	}

	activities, total, err := s.platform.ListActivities(ctx, statusIDs, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	created := 0
	for i := range activities {
		isNew, err := s.importActivity(ctx, &activities[i], groupByStatus)
		if err != nil {
			s.logger.Error("❌ Failed to import activity",
				zap.String("activity", activities[i].Name), zap.Error(err))
			continue
		}
		if isNew {
			created++
		}
	}

	s.logger.Info("📥 Call sync completed",
		zap.Int("fetched", len(activities)),
		zap.Int("created", created),
		zap.Int("total", total))

	return &Result{Synced: len(activities), Created: created, Total: total}, nil
}

func (s *Service) importActivity(ctx context.Context, activity *daktela.Activity, groupByStatus map[string]*uuid.UUID) (bool, error) {
	callID := activity.Name
	if activity.Item != nil && activity.Item.IDCall != "" {
		callID = activity.Item.IDCall
	}

	existing, err := s.callRepo.GetByCallID(ctx, callID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	callTime, err := parseCallTime(activity.Time)
	if err != nil {
		return false, fmt.Errorf("unparseable call time %q: %w", activity.Time, err)
	}

	call := entities.NewCallRecord(callID, activity.Name, callTime, activity.Duration)

	if item := activity.Item; item != nil {
		if item.Direction != "" {
			call.Direction = &item.Direction
		}
		answered := item.Answered
		call.Answered = &answered
		if item.CLID != "" {
			call.CLID = &item.CLID
		}
		if item.Queue != nil && item.Queue.Title != "" {
			call.QueueName = &item.Queue.Title
		}
		if item.Agent != nil && item.Agent.Name != "" {
			agent, err := s.resolveAgent(ctx, item.Agent)
			if err != nil {
				return false, err
			}
			call.AgentID = &agent.ID
		}
	}
	if activity.Contact != nil && activity.Contact.Title != "" {
		call.ContactName = &activity.Contact.Title
	}

	call.QuestionGroupID = matchGroup(activity.Statuses, groupByStatus)

	if err := s.callRepo.Create(ctx, call); err != nil {
		return false, err
	}

	s.logger.Info("📦 Call imported",
		zap.String("call_id", callID),
		zap.String("activity", activity.Name))
	return true, nil
}

func (s *Service) resolveAgent(ctx context.Context, src *daktela.Agent) (*entities.Agent, error) {
	displayName := src.Title
	if displayName == "" {
		displayName = src.Name
	}
	var extension *string
	if src.Extension != "" {
		extension = &src.Extension
	}
	return s.agentRepo.GetOrCreate(ctx, src.Name, displayName, extension)
}

// matchGroup picks the rubric group from the first activity status that has
// an active mapping with a group assigned.
func matchGroup(statuses []daktela.Status, groupByStatus map[string]*uuid.UUID) *uuid.UUID {
	for _, st := range statuses {
		if groupID, ok := groupByStatus[st.Name]; ok && groupID != nil {
			return groupID
		}
	}
	return nil
}

func parseCallTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
