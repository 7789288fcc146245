package estimate

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateTimeline раскладывает задачи по рабочим дням.
//
// total_work_days = ceil(Σ часов / hoursPerDay). Календарь — только будни
// (пн–пт), праздники не учитываются. Старт в выходной переносится на
// понедельник. Первый рабочий день — это project_start, project_end — день
// с номером total_work_days (включительно). Пустой список задач даёт 0 дней
// и project_end == project_start.
//
// Задачи ложатся на общую шкалу накопленных часов в заданном порядке,
// поэтому последняя задача заканчивается в project_end.
func CalculateTimeline(tasks []Task, start time.Time, hoursPerDay int) Timeline {
	if hoursPerDay <= 0 {
		hoursPerDay = 8
	}
	perDay := decimal.NewFromInt(int64(hoursPerDay))
	start = nextBusinessDay(truncateToDate(start))

	roleHours := make(map[Role]decimal.Decimal)
	schedule := make([]ScheduledTask, 0, len(tasks))
	cumulative := decimal.Zero

	for _, t := range tasks {
		hours := decimal.NewFromFloat(t.Hours)
		startDay := int(cumulative.Div(perDay).Floor().IntPart()) + 1
		cumulative = cumulative.Add(hours)
		endDay := int(cumulative.Div(perDay).Ceil().IntPart())
		if endDay < startDay {
			endDay = startDay
		}

		roleHours[t.Role] = roleHours[t.Role].Add(hours)
		schedule = append(schedule, ScheduledTask{
			ID:        t.ID,
			Title:     t.Title,
			Role:      t.Role,
			StartDay:  startDay,
			EndDay:    endDay,
			StartDate: addBusinessDays(start, startDay-1).Format(DateLayout),
			EndDate:   addBusinessDays(start, endDay-1).Format(DateLayout),
		})
	}

	totalDays := int(cumulative.Div(perDay).Ceil().IntPart())
	end := start
	if totalDays > 0 {
		end = addBusinessDays(start, totalDays-1)
	}

	roleDays := make([]RoleDays, 0, len(roleHours))
	for _, role := range canonicalRoles {
		h, ok := roleHours[role]
		if !ok {
			continue
		}
		roleDays = append(roleDays, RoleDays{
			Role:  role,
			Hours: h.InexactFloat64(),
			Days:  int(h.Div(perDay).Ceil().IntPart()),
		})
	}

	return Timeline{
		ProjectStart:  start.Format(DateLayout),
		ProjectEnd:    end.Format(DateLayout),
		TotalWorkDays: totalDays,
		TotalHours:    cumulative.InexactFloat64(),
		HoursPerDay:   hoursPerDay,
		RoleDays:      roleDays,
		TaskSchedule:  schedule,
		start:         start,
		end:           end,
	}
}

// ParseStartDate разбирает YYYY-MM-DD в зоне loc.
func ParseStartDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func nextBusinessDay(t time.Time) time.Time {
	for isWeekend(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// addBusinessDays сдвигает рабочий день t на n рабочих дней вперёд.
// t должен быть рабочим днём.
func addBusinessDays(t time.Time, n int) time.Time {
	if n <= 0 {
		return t
	}
	weeks, rest := n/5, n%5
	t = t.AddDate(0, 0, weeks*7)
	for rest > 0 {
		t = t.AddDate(0, 0, 1)
		if !isWeekend(t) {
			rest--
		}
	}
	return t
}
