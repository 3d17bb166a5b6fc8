package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ExtensionPolicy is the set of file extensions a backend refuses to store.
// Extensions carry their leading dot and are matched case-insensitively.
type ExtensionPolicy struct {
	mu       sync.RWMutex
	excluded map[string]struct{}
}

// NewExtensionPolicy creates a policy excluding the given extensions.
func NewExtensionPolicy(excluded ...string) (*ExtensionPolicy, error) {
	p := &ExtensionPolicy{excluded: make(map[string]struct{})}
	for _, ext := range excluded {
		if err := p.Disallow(ext); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Disallow adds ext to the exclusion set. Excluding an extension twice fails.
func (p *ExtensionPolicy) Disallow(ext string) error {
	norm, err := normalizeExtension(ext)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.excluded == nil {
		p.excluded = make(map[string]struct{})
	}
	if _, ok := p.excluded[norm]; ok {
		return fmt.Errorf("extension %q is already excluded: %w", norm, ErrAlreadyExists)
	}
	p.excluded[norm] = struct{}{}
	return nil
}

// Allow removes ext from the exclusion set. Allowing an extension that was
// never excluded fails.
func (p *ExtensionPolicy) Allow(ext string) error {
	norm, err := normalizeExtension(ext)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.excluded[norm]; !ok {
		return fmt.Errorf("extension %q is not excluded: %w", norm, ErrNotFound)
	}
	delete(p.excluded, norm)
	return nil
}

// IsDisallowed reports whether ext is excluded. Malformed extensions and the
// empty extension are never excluded.
func (p *ExtensionPolicy) IsDisallowed(ext string) bool {
	norm, err := normalizeExtension(ext)
	if err != nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.excluded[norm]
	return ok
}

// Excluded returns the excluded extensions in sorted order
func (p *ExtensionPolicy) Excluded() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	exts := make([]string, 0, len(p.excluded))
	for ext := range p.excluded {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Ext returns the extension of name: everything from the last dot of its
// base name, or "" when the base name has no dot.
func Ext(name string) string {
	if name == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	idx := strings.LastIndexByte(base, '.')
	if idx < 0 {
		return ""
	}
	return base[idx:]
}

// normalizeExtension validates an extension and folds it to lower case. Only
// values Ext can produce are accepted: a dot followed by at least one
// character, with no further dot or path separator.
func normalizeExtension(ext string) (string, error) {
	if ext == "" {
		return "", fmt.Errorf("empty extension: %w", ErrInvalidArgument)
	}
	if len(ext) < 2 || ext[0] != '.' || strings.ContainsAny(ext[1:], "./\\") {
		return "", fmt.Errorf("malformed extension %q: %w", ext, ErrInvalidArgument)
	}
	return strings.ToLower(ext), nil
}
