package estimate

import (
	"errors"
	"strings"
	"testing"

	"estimator/internal/apperr"
)

func defaultRates(t *testing.T) RateTable {
	t.Helper()
	rates, err := NewRateTable(nil)
	if err != nil {
		t.Fatalf("NewRateTable failed: %v", err)
	}
	return rates
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"tasks":[]}`, `{"tasks":[]}`},
		{"json fence", "Вот план:\n```json\n{\"a\":1}\n```\nГотово", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"skips other fences", "```python\nprint('{')\n```\n```json\n{\"b\":2}\n```", `{"b":2}`},
		{"prose around", `Конечно! {"x":"}"} Надеюсь, помог.`, `{"x":"}"}`},
		{"escaped quote", `{"x":"a\"}b"} tail`, `{"x":"a\"}b"}`},
		{"array first", `list: [{"a":1}] and {"b":2}`, `[{"a":1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.raw)
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	if _, err := ExtractJSON("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if _, err := ExtractJSON(`{"tasks":[`); !errors.Is(err, ErrUnterminatedJSON) {
		t.Fatalf("expected ErrUnterminatedJSON, got %v", err)
	}
	if _, err := ExtractJSON(`{"a":[1}`); err == nil {
		t.Fatalf("expected error for mismatched brackets")
	}
}

const fullReply = `{
  "project": {"title": "Todo App", "summary": "Простое CRUD-приложение"},
  "tasks": [
    {"id": "T1", "title": "API", "hours": 16, "priority": "HIGH", "role": "Backend", "depends_on": [], "extra": true},
    {"title": "UI", "description": "Экраны списка", "hours": 24.5, "priority": "средний", "role": "frontend", "depends_on": ["T1"]}
  ],
  "critical_paths": [["T1", "T2"]]
}`

func TestParseReplyFull(t *testing.T) {
	plan, err := ParseReply(fullReply, defaultRates(t))
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if plan.Project.Title != "Todo App" {
		t.Errorf("unexpected project: %+v", plan.Project)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(plan.Tasks))
	}
	first, second := plan.Tasks[0], plan.Tasks[1]
	if first.Role != RoleBackend || first.Priority != PriorityHigh || first.Hours != 16 {
		t.Errorf("unexpected first task: %+v", first)
	}
	if second.ID != "T2" {
		t.Errorf("expected generated id T2, got %q", second.ID)
	}
	if second.Priority != PriorityMedium || second.Hours != 24.5 || second.Description == "" {
		t.Errorf("unexpected second task: %+v", second)
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != "T1" {
		t.Errorf("unexpected depends_on: %v", second.DependsOn)
	}
	if len(plan.CriticalPaths) != 1 || len(plan.CriticalPaths[0]) != 2 {
		t.Errorf("unexpected critical paths: %v", plan.CriticalPaths)
	}
}

func TestParseReplyBareArrayAndEmpty(t *testing.T) {
	plan, err := ParseReply(`[{"title":"API","hours":8,"role":"backend","priority":"low"}]`, defaultRates(t))
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].ID != "T1" {
		t.Fatalf("unexpected tasks: %+v", plan.Tasks)
	}

	plan, err = ParseReply(`{"tasks": []}`, defaultRates(t))
	if err != nil {
		t.Fatalf("empty task list must be accepted: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(plan.Tasks))
	}
}

func TestParseReplyRejectsWholeReply(t *testing.T) {
	cases := map[string]struct {
		raw    string
		detail string
	}{
		"zero hours":     {`[{"title":"A","hours":0,"role":"qa","priority":"low"}]`, "hours: must be positive"},
		"negative hours": {`[{"title":"A","hours":-3,"role":"qa","priority":"low"}]`, "hours: must be positive"},
		"string hours":   {`[{"title":"A","hours":"8","role":"qa","priority":"low"}]`, "hours: must be a number"},
		"missing hours":  {`[{"title":"A","role":"qa","priority":"low"}]`, "hours: required"},
		"unknown role":   {`[{"title":"A","hours":1,"role":"designer","priority":"low"}]`, `unknown role "designer"`},
		"bad priority":   {`[{"title":"A","hours":1,"role":"qa","priority":"urgent"}]`, "priority: must be one of"},
		"empty title":    {`[{"title":" ","hours":1,"role":"qa","priority":"low"}]`, "title: required"},
		"duplicate id":   {`[{"id":"X","title":"A","hours":1,"role":"qa","priority":"low"},{"id":"X","title":"B","hours":1,"role":"qa","priority":"low"}]`, "duplicate id"},
		"unknown dep":    {`[{"title":"A","hours":1,"role":"qa","priority":"low","depends_on":["T9"]}]`, `unknown task "T9"`},
		"self dep":       {`[{"title":"A","hours":1,"role":"qa","priority":"low","depends_on":["T1"]}]`, "depends on itself"},
		"bad path":       {`{"tasks":[{"title":"A","hours":1,"role":"qa","priority":"low"}],"critical_paths":[["T7"]]}`, "critical_paths[0][0]"},
		"not object":     {`[42]`, "must be an object"},
		"huge hours":     {`[{"title":"A","hours":1e16,"role":"qa","priority":"low"}]`, "tasks[0].hours: must not exceed 10000"},
		"overflow hours": {`[{"title":"A","hours":1e400,"role":"qa","priority":"low"}]`, "hours: not a number"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReply(tc.raw, defaultRates(t))
			if !apperr.Is(err, apperr.KindParse) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			details := strings.Join(apperr.DetailsOf(err), "\n")
			if !strings.Contains(details, tc.detail) {
				t.Fatalf("expected detail %q, got:\n%s", tc.detail, details)
			}
		})
	}
}

func TestParseReplyListsEveryProblem(t *testing.T) {
	raw := `[{"title":"A","hours":0,"role":"qa","priority":"low"},{"title":"B","hours":2,"role":"cto","priority":"low"},{"title":"C","hours":2,"role":"qa","priority":"low"}]`
	_, err := ParseReply(raw, defaultRates(t))
	if got := len(apperr.DetailsOf(err)); got != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", got, apperr.DetailsOf(err))
	}
}

func TestParseReplyCapsTotalHours(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 11; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"title":"A","hours":10000,"role":"backend","priority":"low"}`)
	}
	b.WriteString("]")

	_, err := ParseReply(b.String(), defaultRates(t))
	if !apperr.Is(err, apperr.KindParse) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	details := strings.Join(apperr.DetailsOf(err), "\n")
	if !strings.Contains(details, "tasks: total hours 110000.00 exceed 100000") {
		t.Fatalf("unexpected details: %s", details)
	}

	// Ровно на границе ответ принимается.
	plan, err := ParseReply(`[{"title":"A","hours":10000,"role":"backend","priority":"low"}]`, defaultRates(t))
	if err != nil {
		t.Fatalf("task at the limit must be accepted: %v", err)
	}
	if plan.Tasks[0].Hours != MaxTaskHours {
		t.Fatalf("unexpected hours: %v", plan.Tasks[0].Hours)
	}
}

func TestParseReplyStructuralErrors(t *testing.T) {
	cases := map[string]string{
		"no json":       "Извините, я не могу помочь.",
		"missing tasks": `{"project":{"title":"x"}}`,
		"tasks object":  `{"tasks":{}}`,
		"scalar":        "```json\n42\n```",
		"two values":    "```json\n{\"tasks\":[]} {\"tasks\":[]}\n```",
		"comments":      "```json\n{\"tasks\":[] // нет задач\n}\n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseReply(raw, defaultRates(t)); !apperr.Is(err, apperr.KindParse) {
				t.Fatalf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"low": PriorityLow, " High ": PriorityHigh, "Низкий": PriorityLow, "СРЕДНИЙ": PriorityMedium} {
		got, ok := ParsePriority(in)
		if !ok || got != want {
			t.Errorf("ParsePriority(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParsePriority("critical"); ok {
		t.Errorf("unexpected priority accepted")
	}
}
