// Package prompts implements the hot-reloadable prompt/template/intent
// configuration: one PromptConfig snapshot behind a reader/writer gate,
// refreshable from a local file (mtime-driven) or a remote configuration
// service (ETag-conditional).
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrTemplateNotFound is returned when a required template key is missing.
var ErrTemplateNotFound = errors.New("prompts: template not found")

// IntentDefinition names the action dispatched for a classified intent.
type IntentDefinition struct {
	Description string `json:"description"`
	Action      string `json:"action"`
}

// requiredQueryTemplates and requiredResponseTemplates are validated at load
// time; a config missing any of these keys is rejected.
var requiredQueryTemplates = []string{
	"intent_classification",
	"rag_topic_inference",
	"rag_dynamic_query_generation",
	"fallback_topic_resolver",
}

var requiredResponseTemplates = []string{
	"rag_final_answer",
}

// PromptConfig is an immutable snapshot of the active intent/template table.
type PromptConfig struct {
	Intents           map[string]IntentDefinition `json:"intents"`
	QueryTemplates    map[string]string           `json:"query_templates"`
	ResponseTemplates map[string]string           `json:"response_templates"`
	LastLoaded        time.Time                   `json:"-"`
}

func (c *PromptConfig) validate() error {
	for _, key := range requiredQueryTemplates {
		if _, ok := c.QueryTemplates[key]; !ok {
			return fmt.Errorf("%w: query_templates:%s", ErrTemplateNotFound, key)
		}
	}
	for _, key := range requiredResponseTemplates {
		if _, ok := c.ResponseTemplates[key]; !ok {
			return fmt.Errorf("%w: response_templates:%s", ErrTemplateNotFound, key)
		}
	}
	return nil
}

func parse(raw []byte) (*PromptConfig, error) {
	var cfg PromptConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("prompts: decode: %w", err)
	}
	cfg.LastLoaded = time.Now()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// QueryTemplate returns the named query template.
func (c *PromptConfig) QueryTemplate(key string) (string, error) {
	t, ok := c.QueryTemplates[key]
	if !ok {
		return "", fmt.Errorf("%w: query_templates:%s", ErrTemplateNotFound, key)
	}
	return t, nil
}

// ResponseTemplate returns the named response template.
func (c *PromptConfig) ResponseTemplate(key string) (string, error) {
	t, ok := c.ResponseTemplates[key]
	if !ok {
		return "", fmt.Errorf("%w: response_templates:%s", ErrTemplateNotFound, key)
	}
	return t, nil
}

// IntentDescriptions renders "- name: description" lines, one per intent, in
// a stable order.
func (c *PromptConfig) IntentDescriptions() string {
	names := make([]string, 0, len(c.Intents))
	for name := range c.Intents {
		names = append(names, name)
	}
	sortStrings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, c.Intents[name].Description))
	}
	return strings.Join(lines, "\n")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Store holds one PromptConfig behind a reader/writer gate: many concurrent
// Snapshot readers, a single writer on reload.
type Store struct {
	mu         sync.RWMutex
	current    *PromptConfig
	localPath  string
	remote     *remoteClient // nil when remote prompts are disabled
}

// Open loads the initial snapshot: from the remote service when enabled
// (falling back to the local file on any remote failure), otherwise from the
// local file directly.
func Open(localPath string, remote *remoteClient) (*Store, error) {
	s := &Store{localPath: localPath, remote: remote}

	if remote != nil {
		raw, err := remote.fetch()
		if err == nil && raw != "" {
			cfg, parseErr := parse([]byte(raw))
			if parseErr == nil {
				s.current = cfg
				return s, nil
			}
		}
	}

	cfg, err := s.loadLocal()
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

func (s *Store) loadLocal() (*PromptConfig, error) {
	raw, err := os.ReadFile(s.localPath)
	if err != nil {
		return nil, fmt.Errorf("prompts: read %s: %w", s.localPath, err)
	}
	return parse(raw)
}

// Snapshot returns the currently active PromptConfig. Callers should take
// the reference once at the start of a turn and hold it for that turn's
// duration.
func (s *Store) Snapshot() *PromptConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ReloadIfLocalChanged stats the local file; if its mtime is newer than the
// active snapshot's LastLoaded, it is parsed, validated, and swapped in.
// Returns whether a swap occurred.
func (s *Store) ReloadIfLocalChanged() (bool, error) {
	info, err := os.Stat(s.localPath)
	if err != nil {
		return false, fmt.Errorf("prompts: stat %s: %w", s.localPath, err)
	}
	s.mu.RLock()
	lastLoaded := s.current.LastLoaded
	s.mu.RUnlock()
	if !info.ModTime().After(lastLoaded) {
		return false, nil
	}
	cfg, err := s.loadLocal()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return true, nil
}

// ForceReloadRemote performs a conditional fetch against the remote
// configuration service. A 304 yields no change; a failure leaves the
// current snapshot intact.
func (s *Store) ForceReloadRemote() (bool, error) {
	if s.remote == nil {
		return false, errors.New("prompts: remote prompts not enabled")
	}
	raw, err := s.remote.fetch()
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	cfg, err := parse([]byte(raw))
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return true, nil
}
