package estimate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"estimator/internal/apperr"
)

// Пределы часов в ответе модели. Ответ недоверенный: без них суммы
// переполняют int64, а календарь считает миллионы дней.
const (
	MaxTaskHours  = 10_000
	MaxTotalHours = 100_000
)

var (
	ErrNoJSON           = errors.New("no JSON value found in model reply")
	ErrUnterminatedJSON = errors.New("JSON value in model reply is not terminated")
)

// ExtractJSON выделяет JSON из ответа модели по единому правилу:
//  1. первый блок ``` или ```json, если он есть;
//  2. иначе — первое сбалансированное значение, начиная с первой { или [.
//
// Скобки внутри строк JSON не учитываются. Никаких других эвристик нет.
func ExtractJSON(raw string) (string, error) {
	if block, ok := fencedBlock(raw); ok {
		return block, nil
	}

	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}
	end, err := balancedEnd(raw, start)
	if err != nil {
		return "", err
	}
	return raw[start : end+1], nil
}

func fencedBlock(raw string) (string, bool) {
	const fenceMark = "```"
	rest := raw
	for {
		open := strings.Index(rest, fenceMark)
		if open == -1 {
			return "", false
		}
		rest = rest[open+len(fenceMark):]
		nl := strings.IndexByte(rest, '\n')
		if nl == -1 {
			return "", false
		}
		lang := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		closeIdx := strings.Index(body, fenceMark)
		if closeIdx == -1 {
			return "", false
		}
		if lang == "" || lang == "json" {
			return strings.TrimSpace(body[:closeIdx]), true
		}
		rest = body[closeIdx+len(fenceMark):]
	}
}

func balancedEnd(s string, start int) (int, error) {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, nil
			}
		}
	}
	return 0, ErrUnterminatedJSON
}

// ParseReply превращает ответ модели в провалидированный план.
// Если хоть одна задача некорректна, отклоняется весь ответ (ParseError),
// в Details перечисляются все найденные нарушения.
func ParseReply(raw string, rates RateTable) (Plan, error) {
	const op = "estimate.ParseReply"

	candidate, err := ExtractJSON(raw)
	if err != nil {
		return Plan{}, &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "model reply contains no usable JSON", Err: err}
	}

	value, err := decodeSingle(candidate)
	if err != nil {
		return Plan{}, &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "model reply JSON is malformed", Err: err}
	}

	var (
		plan     Plan
		errs     []string
		rawTasks []any
		rawPaths any
	)

	switch v := value.(type) {
	case map[string]any:
		tasksValue, ok := v["tasks"]
		if !ok {
			return Plan{}, &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "model reply has no tasks field"}
		}
		list, ok := tasksValue.([]any)
		if !ok {
			return Plan{}, &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "tasks must be an array"}
		}
		rawTasks = list
		plan.Project, errs = parseProject(v["project"], errs)
		rawPaths = v["critical_paths"]
	case []any:
		rawTasks = v
	default:
		return Plan{}, &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "model reply must be a JSON object or array"}
	}

	plan.Tasks = make([]Task, 0, len(rawTasks))
	for i, item := range rawTasks {
		task, taskErrs := parseTask(i, item, rates)
		errs = append(errs, taskErrs...)
		plan.Tasks = append(plan.Tasks, task)
	}
	errs = append(errs, checkReferences(plan.Tasks)...)
	errs = append(errs, checkTotalHours(plan.Tasks)...)

	plan.CriticalPaths, errs = parseCriticalPaths(rawPaths, plan.Tasks, errs)

	if len(errs) > 0 {
		return Plan{}, &apperr.Error{
			Kind:    apperr.KindParse,
			Op:      op,
			Message: fmt.Sprintf("model reply failed validation (%d problems)", len(errs)),
			Details: errs,
		}
	}
	return plan, nil
}

func decodeSingle(candidate string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err != nil {
			return nil, fmt.Errorf("trailing data after JSON: %w", err)
		}
		if len(bytes.TrimSpace(extra)) > 0 {
			return nil, errors.New("more than one JSON value")
		}
	}
	return value, nil
}

func parseProject(v any, errs []string) (Project, []string) {
	if v == nil {
		return Project{}, errs
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Project{}, append(errs, "project must be an object")
	}
	var p Project
	var err string
	if p.Title, err = optionalString(obj, "title"); err != "" {
		errs = append(errs, "project."+err)
	}
	if p.Summary, err = optionalString(obj, "summary"); err != "" {
		errs = append(errs, "project."+err)
	}
	return p, errs
}

func parseTask(index int, v any, rates RateTable) (Task, []string) {
	prefix := fmt.Sprintf("tasks[%d]", index)
	obj, ok := v.(map[string]any)
	if !ok {
		return Task{}, []string{prefix + ": must be an object"}
	}

	var (
		task Task
		errs []string
		msg  string
	)

	task.ID, msg = optionalString(obj, "id")
	if msg != "" {
		errs = append(errs, prefix+"."+msg)
	}
	task.ID = strings.TrimSpace(task.ID)
	if task.ID == "" {
		task.ID = fmt.Sprintf("T%d", index+1)
	}

	title, msg := optionalString(obj, "title")
	switch {
	case msg != "":
		errs = append(errs, prefix+"."+msg)
	case strings.TrimSpace(title) == "":
		errs = append(errs, prefix+".title: required")
	}
	task.Title = strings.TrimSpace(title)

	task.Description, msg = optionalString(obj, "description")
	if msg != "" {
		errs = append(errs, prefix+"."+msg)
	}

	switch n := obj["hours"].(type) {
	case nil:
		errs = append(errs, prefix+".hours: required")
	case json.Number:
		hours, err := n.Float64()
		if err != nil {
			errs = append(errs, prefix+".hours: not a number")
		} else if hours <= 0 {
			errs = append(errs, fmt.Sprintf("%s.hours: must be positive, got %s", prefix, n.String()))
		} else if hours > MaxTaskHours {
			errs = append(errs, fmt.Sprintf("%s.hours: must not exceed %d, got %s", prefix, MaxTaskHours, n.String()))
		}
		task.Hours = hours
	default:
		errs = append(errs, prefix+".hours: must be a number")
	}

	priority, msg := optionalString(obj, "priority")
	if msg != "" {
		errs = append(errs, prefix+"."+msg)
	} else if p, ok := ParsePriority(priority); ok {
		task.Priority = p
	} else {
		errs = append(errs, fmt.Sprintf("%s.priority: must be one of low, medium, high, got %q", prefix, priority))
	}

	roleName, msg := optionalString(obj, "role")
	if msg != "" {
		errs = append(errs, prefix+"."+msg)
	} else if role, ok := ParseRole(roleName); !ok {
		errs = append(errs, fmt.Sprintf("%s.role: unknown role %q", prefix, roleName))
	} else if _, ok := rates.Rate(role); !ok {
		errs = append(errs, fmt.Sprintf("%s.role: no rate for role %q", prefix, role))
	} else {
		task.Role = role
	}

	task.DependsOn = []string{}
	switch deps := obj["depends_on"].(type) {
	case nil:
	case []any:
		for j, d := range deps {
			s, ok := d.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Sprintf("%s.depends_on[%d]: must be a non-empty string", prefix, j))
				continue
			}
			task.DependsOn = append(task.DependsOn, strings.TrimSpace(s))
		}
	default:
		errs = append(errs, prefix+".depends_on: must be an array")
	}

	return task, errs
}

func checkTotalHours(tasks []Task) []string {
	var total float64
	for _, t := range tasks {
		if t.Hours > 0 && t.Hours <= MaxTaskHours {
			total += t.Hours
		}
	}
	if total > MaxTotalHours {
		return []string{fmt.Sprintf("tasks: total hours %.2f exceed %d", total, MaxTotalHours)}
	}
	return nil
}

// checkReferences проверяет уникальность id и ссылки depends_on.
func checkReferences(tasks []Task) []string {
	var errs []string
	seen := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if prev, ok := seen[t.ID]; ok {
			errs = append(errs, fmt.Sprintf("tasks[%d].id: duplicate id %q (first used by tasks[%d])", i, t.ID, prev))
			continue
		}
		seen[t.ID] = i
	}
	for i, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				errs = append(errs, fmt.Sprintf("tasks[%d].depends_on: task %q depends on itself", i, t.ID))
				continue
			}
			if _, ok := seen[dep]; !ok {
				errs = append(errs, fmt.Sprintf("tasks[%d].depends_on: unknown task %q", i, dep))
			}
		}
	}
	return errs
}

func parseCriticalPaths(v any, tasks []Task, errs []string) ([][]string, []string) {
	paths := [][]string{}
	if v == nil {
		return paths, errs
	}
	list, ok := v.([]any)
	if !ok {
		return paths, append(errs, "critical_paths: must be an array")
	}

	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = struct{}{}
	}

	for i, item := range list {
		chain, ok := item.([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("critical_paths[%d]: must be an array of task ids", i))
			continue
		}
		path := make([]string, 0, len(chain))
		for j, step := range chain {
			id, ok := step.(string)
			if !ok {
				errs = append(errs, fmt.Sprintf("critical_paths[%d][%d]: must be a string", i, j))
				continue
			}
			if _, known := ids[id]; !known {
				errs = append(errs, fmt.Sprintf("critical_paths[%d][%d]: unknown task %q", i, j, id))
				continue
			}
			path = append(path, id)
		}
		paths = append(paths, path)
	}
	return paths, errs
}

// optionalString читает строковое поле; отсутствие и null дают "".
// Второе значение — описание ошибки типа или "".
func optionalString(obj map[string]any, key string) (string, string) {
	switch v := obj[key].(type) {
	case nil:
		return "", ""
	case string:
		return v, ""
	default:
		return "", key + ": must be a string"
	}
}

// ParsePriority нормализует приоритет. Принимаются и русские метки,
// которые модель может повторить из промпта.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "низкий":
		return PriorityLow, true
	case "medium", "средний":
		return PriorityMedium, true
	case "high", "высокий":
		return PriorityHigh, true
	default:
		return "", false
	}
}
