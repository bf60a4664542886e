package match

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
)

// TeamBook is the alias cache mapping (source, raw name) to the canonical
// normalized team name used by the matcher's indices. It is seeded from a
// curated mappings file at boot and learns new aliases at runtime; learned
// aliases live for the process lifetime only and are never written back.
type TeamBook struct {
	mu      sync.RWMutex
	byAlias map[string]string // "source:rawname" (lowercased) -> canonical
}

// NewTeamBook returns an empty alias cache.
func NewTeamBook() *TeamBook {
	return &TeamBook{byAlias: make(map[string]string)}
}

// LoadTeamBook reads the persisted mappings file, a JSON object of
// {canonicalName: {"source:rawname": true, ...}}. A missing or corrupt file
// is not fatal: the book starts empty and matching degrades to pure fuzzy.
func LoadTeamBook(path string) *TeamBook {
	book := NewTeamBook()
	if path == "" {
		return book
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[TEAMS] No mappings file at %s: %v (starting empty)", path, err)
		return book
	}

	var raw map[string]map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[TEAMS] Corrupt mappings file %s: %v (starting empty)", path, err)
		return book
	}

	for canonical, aliases := range raw {
		key := NormalizeTeamName(canonical)
		if key == "" {
			continue
		}
		for alias := range aliases {
			book.byAlias[strings.ToLower(alias)] = key
		}
	}

	log.Printf("[TEAMS] Loaded %d team aliases from %s", len(book.byAlias), path)
	return book
}

// Lookup returns the canonical name for a source's raw team name.
func (b *TeamBook) Lookup(source, rawName string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	canonical, ok := b.byAlias[aliasKey(source, rawName)]
	return canonical, ok
}

// Cache learns a mapping at runtime. The first writer wins: an existing
// entry is never overwritten, so index keys stay stable once learned.
func (b *TeamBook) Cache(source, rawName, canonical string) {
	if rawName == "" || canonical == "" {
		return
	}
	key := aliasKey(source, rawName)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byAlias[key]; exists {
		return
	}
	b.byAlias[key] = canonical
}

// Len returns the number of cached aliases.
func (b *TeamBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byAlias)
}

func aliasKey(source, rawName string) string {
	return source + ":" + strings.ToLower(rawName)
}
