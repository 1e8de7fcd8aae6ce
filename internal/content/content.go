// Package content рендерит тексты уведомлений планировщика.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"
)

var (
	// ErrUnknownTemplate — шаблон с таким именем не зарегистрирован.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка исполнения шаблона.
	ErrTemplateRender = errors.New("template render error")
)

// Имена встроенных шаблонов.
const (
	AppointmentReminder = "appointmentReminder"
	NewMemberNudge      = "newMemberNudge"
)

// ReminderData — данные шаблона appointmentReminder.
type ReminderData struct {
	FirstName string
	Start     time.Time
	Link      string
}

// NudgeData — данные шаблона newMemberNudge.
type NudgeData struct {
	FirstName string
	Link      string
}

var defaultTemplates = map[string]string{
	AppointmentReminder: `Hi{{ with .FirstName }} {{ . }}{{ end }}, your appointment starts at {{ .Start | clock }}. Join here: {{ .Link }}`,
	NewMemberNudge:      `Hi{{ with .FirstName }} {{ . }}{{ end }}, your care team is waiting for you. Open the app to get started: {{ .Link }}`,
}

var funcs = template.FuncMap{
	// clock — время в формате 15:04 UTC
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04 MST")
	},

	// default — значение по умолчанию для пустой строки
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},

	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// Renderer хранит именованные шаблоны.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRenderer создаёт Renderer со встроенными шаблонами.
func NewRenderer() *Renderer {
	r := &Renderer{templates: make(map[string]*template.Template)}
	for name, text := range defaultTemplates {
		if err := r.Register(name, text); err != nil {
			panic(err)
		}
	}
	return r
}

// Register добавляет или заменяет шаблон.
func (r *Renderer) Register(name, text string) error {
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTemplateParse, name, err)
	}

	r.mu.Lock()
	r.templates[name] = t
	r.mu.Unlock()
	return nil
}

// Render исполняет шаблон name с data.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, name, err)
	}
	return buf.String(), nil
}
