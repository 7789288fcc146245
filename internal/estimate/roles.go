package estimate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Role — должность исполнителя задачи.
type Role string

const (
	RoleBackend  Role = "backend"
	RoleFrontend Role = "frontend"
	RoleDevOps   Role = "devops"
	RoleQA       Role = "qa"
	RoleUX       Role = "ux"
	RolePM       Role = "pm"
)

// canonicalRoles задаёт закрытый набор ролей и порядок строк в разбивке.
var canonicalRoles = []Role{RoleBackend, RoleFrontend, RoleDevOps, RoleQA, RoleUX, RolePM}

// DefaultRates — ставки по умолчанию, ₽/час.
var DefaultRates = map[Role]int64{
	RoleBackend:  2000,
	RoleFrontend: 1800,
	RoleDevOps:   2200,
	RoleQA:       1500,
	RoleUX:       1700,
	RolePM:       2500,
}

// ParseRole нормализует имя роли. Регистр и пробелы по краям не учитываются.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range canonicalRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// RateTable — неизменяемая таблица ставок. Строится один раз при старте.
type RateTable struct {
	rates map[Role]decimal.Decimal
}

// MaxRate — верхняя граница ставки, руб/ч. Вместе с MaxTotalHours
// держит суммы в пределах int64.
const MaxRate = 1_000_000

// NewRateTable строит таблицу из ставок по умолчанию и переопределений.
// Ключи переопределений должны быть известными ролями, ставки — положительными.
func NewRateTable(overrides map[string]int64) (RateTable, error) {
	rates := make(map[Role]decimal.Decimal, len(canonicalRoles))
	for role, rate := range DefaultRates {
		rates[role] = decimal.NewFromInt(rate)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		role, ok := ParseRole(k)
		if !ok {
			return RateTable{}, fmt.Errorf("unknown role in rate overrides: %q", k)
		}
		if overrides[k] <= 0 {
			return RateTable{}, fmt.Errorf("rate for %s must be positive, got %d", role, overrides[k])
		}
		if overrides[k] > MaxRate {
			return RateTable{}, fmt.Errorf("rate for %s must not exceed %d, got %d", role, MaxRate, overrides[k])
		}
		rates[role] = decimal.NewFromInt(overrides[k])
	}
	return RateTable{rates: rates}, nil
}

// Rate возвращает ставку роли.
func (t RateTable) Rate(role Role) (decimal.Decimal, bool) {
	rate, ok := t.rates[role]
	return rate, ok
}

// Roles возвращает роли в каноническом порядке.
func (t RateTable) Roles() []Role {
	out := make([]Role, 0, len(canonicalRoles))
	for _, r := range canonicalRoles {
		if _, ok := t.rates[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
