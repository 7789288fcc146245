package estimate

import (
	"math"

	"github.com/shopspring/decimal"

	"estimator/internal/apperr"
)

// Currency — валюта ставок и сумм.
const Currency = "RUB"

// CalculateCost считает стоимость задач по ставкам ролей.
//
// Правило округления: стоимость каждой задачи (часы × ставка) округляется
// до целого рубля, половины — от нуля. Подытоги по ролям и итог — точные суммы
// уже округлённых значений, поэтому Total == Σ Breakdown[*].Amount.
// Разбивка идёт в каноническом порядке ролей.
func CalculateCost(tasks []Task, rates RateTable) (CostEstimate, error) {
	const op = "estimate.CalculateCost"

	type roleAcc struct {
		hours  decimal.Decimal
		amount decimal.Decimal
		count  int
	}

	acc := make(map[Role]*roleAcc)
	items := make([]TaskCost, 0, len(tasks))

	for _, t := range tasks {
		rate, ok := rates.Rate(t.Role)
		if !ok {
			// Парсер не пропускает неизвестные роли; сюда попадаем только при нарушении инварианта.
			return CostEstimate{}, apperr.Internal(op, "no rate for role %q in task %s", t.Role, t.ID)
		}
		hours := decimal.NewFromFloat(t.Hours)
		cost := hours.Mul(rate).Round(0)

		a, ok := acc[t.Role]
		if !ok {
			a = &roleAcc{}
			acc[t.Role] = a
		}
		a.hours = a.hours.Add(hours)
		a.amount = a.amount.Add(cost)
		a.count++

		items = append(items, TaskCost{
			ID:    t.ID,
			Title: t.Title,
			Role:  t.Role,
			Hours: t.Hours,
			Rate:  rate.IntPart(),
			Cost:  cost.IntPart(),
		})
	}

	est := CostEstimate{
		Currency:  Currency,
		Breakdown: []RoleCost{},
		Items:     items,
	}
	total := decimal.Zero
	for _, role := range canonicalRoles {
		a, ok := acc[role]
		if !ok {
			continue
		}
		rate, _ := rates.Rate(role)
		est.Breakdown = append(est.Breakdown, RoleCost{
			Role:      role,
			Hours:     a.hours.InexactFloat64(),
			Rate:      rate.IntPart(),
			TaskCount: a.count,
			Amount:    a.amount.IntPart(),
		})
		total = total.Add(a.amount)
	}
	if len(acc) != len(est.Breakdown) {
		return CostEstimate{}, apperr.Internal(op, "task roles outside the canonical role set")
	}
	if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return CostEstimate{}, apperr.Internal(op, "total cost %s overflows", total.String())
	}
	est.Total = total.IntPart()
	return est, nil
}
