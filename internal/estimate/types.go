package estimate

import "time"

// Priority — приоритет задачи.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DateLayout — формат дат в запросах и ответах.
const DateLayout = "2006-01-02"

// Request — входные данные оценки.
type Request struct {
	Title    string `json:"title"`
	SpecText string `json:"spec_text"`
	// ProjectStart — необязательная дата начала (YYYY-MM-DD).
	ProjectStart string `json:"project_start,omitempty"`
}

type Project struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Hours       float64  `json:"hours"`
	Priority    Priority `json:"priority"`
	Role        Role     `json:"role"`
	DependsOn   []string `json:"depends_on"`
}

// Plan — провалидированный ответ модели.
type Plan struct {
	Project       Project
	Tasks         []Task
	CriticalPaths [][]string
}

// RoleCost — строка разбивки стоимости по роли.
type RoleCost struct {
	Role      Role    `json:"role"`
	Hours     float64 `json:"hours"`
	Rate      int64   `json:"rate"`
	TaskCount int     `json:"task_count"`
	Amount    int64   `json:"amount"`
}

// TaskCost — стоимость отдельной задачи.
type TaskCost struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Role  Role    `json:"role"`
	Hours float64 `json:"hours"`
	Rate  int64   `json:"rate"`
	Cost  int64   `json:"cost"`
}

// CostEstimate: Total всегда равен сумме Breakdown[*].Amount.
type CostEstimate struct {
	Total     int64      `json:"total"`
	Currency  string     `json:"currency"`
	Breakdown []RoleCost `json:"breakdown"`
	Items     []TaskCost `json:"items"`
}

type RoleDays struct {
	Role  Role    `json:"role"`
	Hours float64 `json:"hours"`
	Days  int     `json:"days"`
}

type ScheduledTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Role      Role   `json:"role"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartDay  int    `json:"start_day"`
	EndDay    int    `json:"end_day"`
}

type Timeline struct {
	ProjectStart  string          `json:"project_start"`
	ProjectEnd    string          `json:"project_end"`
	TotalWorkDays int             `json:"total_work_days"`
	TotalHours    float64         `json:"total_hours"`
	HoursPerDay   int             `json:"hours_per_day"`
	RoleDays      []RoleDays      `json:"role_days"`
	TaskSchedule  []ScheduledTask `json:"task_schedule"`

	start time.Time
	end   time.Time
}

// Start возвращает дату начала как time.Time.
func (t Timeline) Start() time.Time { return t.start }

// End возвращает дату окончания как time.Time.
func (t Timeline) End() time.Time { return t.end }

// Response — итог оценки. Создаётся только при успехе конвейера.
type Response struct {
	Project          Project      `json:"project"`
	Tasks            []Task       `json:"tasks"`
	CriticalPaths    [][]string   `json:"critical_paths"`
	CostEstimate     CostEstimate `json:"cost_estimate"`
	TimelineEstimate Timeline     `json:"timeline_estimate"`
	Model            string       `json:"model"`
	GeneratedAt      string       `json:"generated_at"`
	Success          bool         `json:"success"`
}
