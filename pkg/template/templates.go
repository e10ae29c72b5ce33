package template

import (
	"bytes"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"
)

var ErrTemplateNotFound = errors.New("template not found")

type executor interface {
	ExecuteTemplate(w *bytes.Buffer, name string, data any) error
}

type htmlExec struct{ t *htmltmpl.Template }

func (h htmlExec) ExecuteTemplate(w *bytes.Buffer, name string, data any) error {
	return h.t.ExecuteTemplate(w, name, data)
}

type textExec struct{ t *texttmpl.Template }

func (x textExec) ExecuteTemplate(w *bytes.Buffer, name string, data any) error {
	return x.t.ExecuteTemplate(w, name, data)
}

// Service renders fallback bodies from <dir>/<channel>/<type>.tmpl wrapped in
// <dir>/<channel>/base.tmpl. Email is rendered as HTML, every other channel as
// plain text. Parsed templates are cached for the lifetime of the service.
type Service struct {
	fsys fs.FS

	mu    sync.RWMutex
	cache map[string]executor
}

func NewTemplateService(dir string) *Service {
	return NewTemplateServiceFS(os.DirFS(dir))
}

func NewTemplateServiceFS(fsys fs.FS) *Service {
	return &Service{fsys: fsys, cache: make(map[string]executor)}
}

func (s *Service) Render(channel, messageType string, data any) (string, error) {
	tmpl, err := s.load(channel, strings.ToLower(messageType))
	if err != nil {
		return "", err
	}

	var dataMap map[string]any
	switch v := data.(type) {
	case map[string]any:
		dataMap = v
	default:
		dataMap = map[string]any{}
		if data != nil {
			dataMap["Data"] = data
		}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.tmpl", dataMap); err != nil {
		return "", fmt.Errorf("execute %s template: %w", channel, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (s *Service) load(channel, name string) (executor, error) {
	key := channel + "/" + name
	s.mu.RLock()
	tmpl, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	basePath := filepath.ToSlash(filepath.Join(channel, "base.tmpl"))
	bodyPath := filepath.ToSlash(filepath.Join(channel, name+".tmpl"))
	if _, err := fs.Stat(s.fsys, bodyPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	if channel == "email" {
		t, err := htmltmpl.ParseFS(s.fsys, basePath, bodyPath)
		if err != nil {
			return nil, fmt.Errorf("parse email templates: %w", err)
		}
		tmpl = htmlExec{t}
	} else {
		t, err := texttmpl.ParseFS(s.fsys, basePath, bodyPath)
		if err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", channel, err)
		}
		tmpl = textExec{t}
	}

	s.mu.Lock()
	s.cache[key] = tmpl
	s.mu.Unlock()
	return tmpl, nil
}
