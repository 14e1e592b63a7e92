package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoadedPrompt holds prompt content read from files for one operation
type LoadedPrompt struct {
	System string
	User   string
}

// PromptStore holds prompts loaded from files. It is safe for concurrent use
// and can be reloaded while the server runs.
type PromptStore struct {
	mu      sync.RWMutex
	prompts map[Operation]LoadedPrompt
}

// NewPromptStore creates an empty prompt store
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[Operation]LoadedPrompt)}
}

// Get returns the loaded prompts for op
func (s *PromptStore) Get(op Operation) (LoadedPrompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[op]
	return p, ok
}

// Count returns the number of prompt texts loaded from files
func (s *PromptStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.prompts {
		if p.System != "" {
			count++
		}
		if p.User != "" {
			count++
		}
	}
	return count
}

// Load reads every configured prompt file. The store is replaced only when all
// files load, so a bad edit keeps the previous prompts in place.
func (s *PromptStore) Load(c *Config) error {
	loaded := make(map[Operation]LoadedPrompt)

	for _, op := range Operations {
		opCfg, err := c.operationConfig(op)
		if err != nil {
			return err
		}

		var p LoadedPrompt
		if opCfg.CustomPrompts.SystemFile != "" {
			if p.System, err = loadPromptFromFile(opCfg.CustomPrompts.SystemFile, "system", op); err != nil {
				return err
			}
		}
		if opCfg.CustomPrompts.UserFile != "" {
			if p.User, err = loadPromptFromFile(opCfg.CustomPrompts.UserFile, "user", op); err != nil {
				return err
			}
		}
		if p.System != "" || p.User != "" {
			loaded[op] = p
		}
	}

	s.mu.Lock()
	s.prompts = loaded
	s.mu.Unlock()

	if n := s.Count(); n == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded from files: %d", n)
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file
func loadPromptFromFile(filePath, promptType string, op Operation) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, op, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, op, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, op, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, op, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)", promptType, op, absPath, len(trimmed))
	return trimmed, nil
}

// PromptFiles returns every configured prompt file path
func (c *Config) PromptFiles() []string {
	var files []string
	for _, op := range Operations {
		opCfg, err := c.operationConfig(op)
		if err != nil {
			continue
		}
		if opCfg.CustomPrompts.SystemFile != "" {
			files = append(files, opCfg.CustomPrompts.SystemFile)
		}
		if opCfg.CustomPrompts.UserFile != "" {
			files = append(files, opCfg.CustomPrompts.UserFile)
		}
	}
	return files
}

// validatePromptFiles checks that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	for _, file := range c.PromptFiles() {
		absPath, err := filepath.Abs(file)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid prompt path: %s", file))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("prompt file not found: %s", absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}
