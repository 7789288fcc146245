package estimate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"estimator/internal/apperr"
	"estimator/internal/llm"
)

// Service собирает конвейер оценки: промпт → LLM → разбор → стоимость и сроки.
// Все поля только читаются, поэтому Service безопасен для параллельных запросов.
type Service struct {
	provider     llm.Provider
	rates        RateTable
	hoursPerDay  int
	loc          *time.Location
	maxSpecChars int
	now          func() time.Time
	logger       *slog.Logger
}

type ServiceConfig struct {
	Provider     llm.Provider
	Rates        RateTable
	HoursPerDay  int
	Location     *time.Location
	MaxSpecChars int
	// Now подменяется в тестах.
	Now    func() time.Time
	Logger *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:     cfg.Provider,
		rates:        cfg.Rates,
		hoursPerDay:  cfg.HoursPerDay,
		loc:          cfg.Location,
		maxSpecChars: cfg.MaxSpecChars,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hoursPerDay <= 0 {
		s.hoursPerDay = 8
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Estimate выполняет полный конвейер. Ошибки запроса обнаруживаются до
// обращения к провайдеру. При любой ошибке частичный ответ не возвращается.
func (s *Service) Estimate(ctx context.Context, req Request) (Response, error) {
	const op = "estimate.Estimate"

	start, err := s.startDate(req.ProjectStart)
	if err != nil {
		return Response{}, err
	}
	prompt, err := BuildPrompt(req.Title, req.SpecText, s.rates.Roles(), s.maxSpecChars)
	if err != nil {
		return Response{}, err
	}

	raw, err := llm.Ask(ctx, s.provider, prompt.System, prompt.User, "")
	if err != nil {
		return Response{}, apperr.Wrap(apperr.KindProviderUnavailable, op, err)
	}

	resp, err := s.Assemble(raw, strings.TrimSpace(req.Title), start)
	if err != nil {
		s.logger.Warn("model reply rejected",
			slog.String("kind", string(apperr.KindOf(err))),
			slog.Int("problems", len(apperr.DetailsOf(err))),
			slog.Int("reply_chars", len(raw)))
		return Response{}, err
	}
	resp.Model = s.provider.Model()
	resp.GeneratedAt = s.now().In(s.loc).Format(time.RFC3339)

	s.logger.Info("estimate ready",
		slog.Int("tasks", len(resp.Tasks)),
		slog.Int64("total", resp.CostEstimate.Total),
		slog.Int("work_days", resp.TimelineEstimate.TotalWorkDays))
	return resp, nil
}

// Assemble превращает сырой ответ модели в Response без обращения к сети.
// При одинаковых входных данных результат детерминирован.
func (s *Service) Assemble(raw, title string, start time.Time) (Response, error) {
	plan, err := ParseReply(raw, s.rates)
	if err != nil {
		return Response{}, err
	}

	cost, err := CalculateCost(plan.Tasks, s.rates)
	if err != nil {
		return Response{}, err
	}
	timeline := CalculateTimeline(plan.Tasks, start, s.hoursPerDay)

	project := plan.Project
	if project.Title == "" {
		project.Title = title
	}
	paths := plan.CriticalPaths
	if paths == nil {
		paths = [][]string{}
	}

	return Response{
		Project:          project,
		Tasks:            plan.Tasks,
		CriticalPaths:    paths,
		CostEstimate:     cost,
		TimelineEstimate: timeline,
		Success:          true,
	}, nil
}

func (s *Service) startDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.now().In(s.loc), nil
	}
	start, err := ParseStartDate(value, s.loc)
	if err != nil {
		return time.Time{}, apperr.Validation("estimate.Estimate", "project_start must be a date in YYYY-MM-DD format")
	}
	return start, nil
}
