package stats

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
)

// GroupOverview is one (agent, group) aggregate joined with its group name
type GroupOverview struct {
	QuestionGroupID uuid.UUID `json:"question_group_id"`
	GroupName       string    `json:"group_name"`
	AnalyzedCount   int       `json:"analyzed_count"`
	AverageScore    int       `json:"average_score"`
	TotalDuration   int       `json:"total_duration"`
}

// AgentOverview sums an agent's aggregates across groups
type AgentOverview struct {
	Groups        []GroupOverview `json:"groups"`
	AnalyzedCount int             `json:"analyzed_count"`
	AverageScore  int             `json:"average_score"`
	TotalDuration int             `json:"total_duration"`
}

// RankingEntry is one agent's position in the quality ranking
type RankingEntry struct {
	AgentID       uuid.UUID `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	AnalyzedCount int       `json:"analyzed_count"`
	AverageScore  int       `json:"average_score"`
	TotalDuration int       `json:"total_duration"`
}

// QuestionPerformance is the outcome distribution of one rubric question
type QuestionPerformance struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	SortOrder    int    `json:"sort_order"`
	TakCount     int    `json:"tak_count"`
	NieCount     int    `json:"nie_count"`
	TotalCount   int    `json:"total_count"`
	PassRate     int    `json:"pass_rate"`
}

// DashboardSummary is the landing-page rollup
type DashboardSummary struct {
	AnalyzedCount  int                   `json:"analyzed_count"`
	AverageScore   int                   `json:"average_score"`
	WorstQuestions []QuestionPerformance `json:"worst_questions"`
}

// ReportService serves the aggregate read queries
type ReportService struct {
	statsRepo    repositories.StatsReadRepository
	agentRepo    repositories.AgentRepository
	questionRepo repositories.QuestionRepository
}

// NewReportService creates a report service
func NewReportService(
	statsRepo repositories.StatsReadRepository,
	agentRepo repositories.AgentRepository,
	questionRepo repositories.QuestionRepository,
) *ReportService {
	return &ReportService{
		statsRepo:    statsRepo,
		agentRepo:    agentRepo,
		questionRepo: questionRepo,
	}
}

// GetAgentOverview returns an agent's per-group aggregates with totals
func (s *ReportService) GetAgentOverview(ctx context.Context, agentID uuid.UUID) (*AgentOverview, error) {
	rows, err := s.statsRepo.ListCallStatsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	overview := &AgentOverview{Groups: make([]GroupOverview, 0, len(rows))}
	totalScore := 0
	for _, row := range rows {
		groupName := "Unknown"
		if group, err := s.questionRepo.GetGroup(ctx, row.QuestionGroupID); err != nil {
			return nil, err
		} else if group != nil {
			groupName = group.DisplayName
		}

		overview.Groups = append(overview.Groups, GroupOverview{
			QuestionGroupID: row.QuestionGroupID,
			GroupName:       groupName,
			AnalyzedCount:   row.AnalyzedCount,
			AverageScore:    row.AverageScore(),
			TotalDuration:   row.TotalDuration,
		})

		overview.AnalyzedCount += row.AnalyzedCount
		totalScore += row.TotalScore
		overview.TotalDuration += row.TotalDuration
	}

	if overview.AnalyzedCount > 0 {
		overview.AverageScore = roundDiv(totalScore, overview.AnalyzedCount)
	}
	return overview, nil
}

// ListAgentRanking returns all agents ordered by average score, best first
func (s *ReportService) ListAgentRanking(ctx context.Context) ([]RankingEntry, error) {
	rows, err := s.statsRepo.ListCallStats(ctx)
	if err != nil {
		return nil, err
	}

	type totals struct {
		analyzed int
		score    int
		duration int
	}
	byAgent := map[uuid.UUID]*totals{}
	for _, row := range rows {
		t, ok := byAgent[row.AgentID]
		if !ok {
			t = &totals{}
			byAgent[row.AgentID] = t
		}
		t.analyzed += row.AnalyzedCount
		t.score += row.TotalScore
		t.duration += row.TotalDuration
	}

	ranking := make([]RankingEntry, 0, len(byAgent))
	for agentID, t := range byAgent {
		name := "Unknown"
		if agent, err := s.agentRepo.GetByID(ctx, agentID); err != nil {
			return nil, err
		} else if agent != nil {
			name = agent.DisplayName
		}

		entry := RankingEntry{
			AgentID:       agentID,
			AgentName:     name,
			AnalyzedCount: t.analyzed,
			TotalDuration: t.duration,
		}
		if t.analyzed > 0 {
			entry.AverageScore = roundDiv(t.score, t.analyzed)
		}
		ranking = append(ranking, entry)
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].AverageScore != ranking[j].AverageScore {
			return ranking[i].AverageScore > ranking[j].AverageScore
		}
		return ranking[i].AgentName < ranking[j].AgentName
	})
	return ranking, nil
}

// GetQuestionPerformance returns a group's question tallies, worst pass
// rate first
func (s *ReportService) GetQuestionPerformance(ctx context.Context, groupID uuid.UUID) ([]QuestionPerformance, error) {
	rows, err := s.statsRepo.ListQuestionStatsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListActiveByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]entities.Question, len(questions))
	for _, q := range questions {
		byID[q.QuestionID] = q
	}

	performance := make([]QuestionPerformance, 0, len(rows))
	for _, row := range rows {
		entry := QuestionPerformance{
			QuestionID:   row.QuestionID,
			QuestionText: "Unknown",
			SortOrder:    999,
			TakCount:     row.TakCount,
			NieCount:     row.NieCount,
			TotalCount:   row.TotalCount,
			PassRate:     row.PassRate(),
		}
		if q, ok := byID[row.QuestionID]; ok {
			entry.QuestionText = q.Question
			entry.SortOrder = q.SortOrder
		}
		performance = append(performance, entry)
	}

	sort.Slice(performance, func(i, j int) bool {
		return performance[i].PassRate < performance[j].PassRate
	})
	return performance, nil
}

// GetDashboardSummary returns overall totals and the five weakest questions
func (s *ReportService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	callRows, err := s.statsRepo.ListCallStats(ctx)
	if err != nil {
		return nil, err
	}
	questionRows, err := s.statsRepo.ListQuestionStats(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{WorstQuestions: []QuestionPerformance{}}
	totalScore := 0
	for _, row := range callRows {
		summary.AnalyzedCount += row.AnalyzedCount
		totalScore += row.TotalScore
	}
	if summary.AnalyzedCount > 0 {
		summary.AverageScore = roundDiv(totalScore, summary.AnalyzedCount)
	}

	answered := make([]entities.QuestionStats, 0, len(questionRows))
	for _, row := range questionRows {
		if row.TotalCount > 0 {
			answered = append(answered, row)
		}
	}
	sort.Slice(answered, func(i, j int) bool {
		rateI := float64(answered[i].TakCount) / float64(answered[i].TotalCount)
		rateJ := float64(answered[j].TakCount) / float64(answered[j].TotalCount)
		return rateI < rateJ
	})
	if len(answered) > 5 {
		answered = answered[:5]
	}

	for _, row := range answered {
		entry := QuestionPerformance{
			QuestionID:   row.QuestionID,
			QuestionText: "Unknown",
			TakCount:     row.TakCount,
			NieCount:     row.NieCount,
			TotalCount:   row.TotalCount,
			PassRate:     row.PassRate(),
		}
		if q, err := s.questionRepo.GetByQuestionID(ctx, row.QuestionID); err != nil {
			return nil, err
		} else if q != nil {
			entry.QuestionText = q.Question
		}
		summary.WorstQuestions = append(summary.WorstQuestions, entry)
	}

	return summary, nil
}

func roundDiv(sum, count int) int {
	return int(float64(sum)/float64(count) + 0.5)
}
