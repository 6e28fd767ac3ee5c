package validator

import (
	"fmt"
	"strings"
)

// PathManager handles dot-separated record field paths such as
// "address.street" as produced by the record diff.
type PathManager struct{}

// NewPathManager creates a new path manager instance
func NewPathManager() *PathManager {
	return &PathManager{}
}

// GetParentPath extracts the parent path from a given path
func (pm *PathManager) GetParentPath(path string) string {
	lastDot := strings.LastIndex(path, ".")
	if lastDot == -1 {
		return ""
	}
	return path[:lastDot]
}

// TopLevelKey returns the record key a path starts at.
func (pm *PathManager) TopLevelKey(path string) string {
	if idx := strings.Index(path, "."); idx >= 0 {
		return path[:idx]
	}
	return path
}

// GetPathDepth returns the depth level of a path
func (pm *PathManager) GetPathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}

// IsAncestorOf checks if the first path is an ancestor of the second
func (pm *PathManager) IsAncestorOf(ancestorPath, descendantPath string) bool {
	if ancestorPath == "" {
		return true
	}
	return strings.HasPrefix(descendantPath, ancestorPath+".")
}

// Covers reports whether path equals prefix or lies beneath it.
func (pm *PathManager) Covers(prefix, path string) bool {
	return prefix == path || pm.IsAncestorOf(prefix, path)
}

// GetPathComponents splits a path into its components
func (pm *PathManager) GetPathComponents(path string) []string {
	if path == "" {
		return []string{}
	}
	return strings.Split(path, ".")
}

// ValidateKey rejects record keys that would be ambiguous inside a path.
func (pm *PathManager) ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("field key cannot be empty")
	}
	if strings.Contains(key, ".") {
		return fmt.Errorf("field key %q cannot contain '.'", key)
	}
	return nil
}

// ValidateKeys walks a nested value and validates every object key.
func (pm *PathManager) ValidateKeys(path string, value any) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			if err := pm.ValidateKey(key); err != nil {
				if path != "" {
					return fmt.Errorf("%s: %w", path, err)
				}
				return err
			}
			child := key
			if path != "" {
				child = path + "." + key
			}
			if err := pm.ValidateKeys(child, item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range typed {
			if err := pm.ValidateKeys(path, item); err != nil {
				return err
			}
		}
	}
	return nil
}
