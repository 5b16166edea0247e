package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofrs/flock"
)

// DefaultCatalogMaxAge is how long a cached catalog snapshot is trusted
// before a read forces a refresh.
const DefaultCatalogMaxAge = 24 * time.Hour

// ErrNoCatalogKey means a refresh was requested without an API credential
// configured. It is fatal for that operation only, never for the process.
var ErrNoCatalogKey = errors.New("catalog API key not configured")

// CatalogEntry is one model in the remote catalog.
type CatalogEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Created       int64  `json:"created,omitempty"`
	ContextLength int64  `json:"context_length,omitempty"`
}

// Snapshot is the persisted cache shape.
type Snapshot struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Models    []CatalogEntry `json:"models"`
}

// Find returns the entry whose id or name matches, or nil.
func (s *Snapshot) Find(name string) *CatalogEntry {
	for i := range s.Models {
		e := &s.Models[i]
		if e.ID == name || strings.EqualFold(e.ID, name) || strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// Catalog is a process-local, file-backed cache of a remote model catalog.
// Instances hold no state beyond the file itself, so concurrent readers are
// fine; writers go through write-then-rename under a file lock.
type Catalog struct {
	path    string
	baseURL string
	apiKey  string
	client  *http.Client
	log     logr.Logger
}

// NewCatalog creates a catalog cache persisted at path, refreshed from
// baseURL (an OpenRouter-compatible API root).
func NewCatalog(path, baseURL, apiKey string, log logr.Logger) *Catalog {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &Catalog{
		path:    path,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Get returns the cached snapshot when it is present, parseable and younger
// than maxAge (DefaultCatalogMaxAge if zero), otherwise fetches a fresh one
// and persists it. A corrupt cache file counts as a miss, never an error.
func (c *Catalog) Get(ctx context.Context, refresh bool, maxAge time.Duration) (*Snapshot, error) {
	if maxAge <= 0 {
		maxAge = DefaultCatalogMaxAge
	}
	if !refresh {
		if snap := c.load(); snap != nil && time.Since(snap.FetchedAt) < maxAge {
			return snap, nil
		}
	}
	return c.refresh(ctx)
}

func (c *Catalog) load() *Snapshot {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Info("catalog cache unreadable, treating as miss", "path", c.path, "error", err.Error())
		return nil
	}
	if snap.FetchedAt.IsZero() || snap.Models == nil {
		return nil
	}
	return &snap
}

func (c *Catalog) refresh(ctx context.Context) (*Snapshot, error) {
	if c.apiKey == "" {
		return nil, ErrNoCatalogKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching model catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching model catalog: unexpected status %s", resp.Status)
	}

	var payload struct {
		Data []CatalogEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding model catalog: %w", err)
	}

	snap := &Snapshot{FetchedAt: time.Now().UTC(), Models: payload.Data}
	if err := c.save(snap); err != nil {
		// Staleness is bounded by maxAge, so a failed write is not fatal.
		c.log.Info("persisting catalog cache failed", "path", c.path, "error", err.Error())
	}
	c.log.V(1).Info("catalog refreshed", "models", len(snap.Models))
	return snap, nil
}

func (c *Catalog) save(snap *Snapshot) error {
	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Search sort modes.
const (
	SortRecent    = "recent"
	SortRelevance = "relevance"
)

// SearchCatalog filters and orders catalog entries. Scoring is substring
// presence, weighted by term length, with a bonus for prefix matches on the
// id or name. With no query the default sort is recent, otherwise relevance;
// relevance ties break by recency, and entries without a creation timestamp
// sort as oldest. limit is clamped to [1, 25] and defaults to 5.
func SearchCatalog(entries []CatalogEntry, query, sortMode string, limit int) []CatalogEntry {
	if limit <= 0 {
		limit = 5
	}
	if limit > 25 {
		limit = 25
	}
	query = strings.TrimSpace(query)
	if sortMode == "" {
		if query == "" {
			sortMode = SortRecent
		} else {
			sortMode = SortRelevance
		}
	}

	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		entry CatalogEntry
		score int
	}
	matched := make([]scored, 0, len(entries))
	for _, e := range entries {
		s := scoreEntry(e, terms)
		if len(terms) > 0 && s == 0 {
			continue
		}
		matched = append(matched, scored{entry: e, score: s})
	}

	switch sortMode {
	case SortRelevance:
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].score != matched[j].score {
				return matched[i].score > matched[j].score
			}
			return matched[i].entry.Created > matched[j].entry.Created
		})
	default:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].entry.Created > matched[j].entry.Created
		})
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]CatalogEntry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out
}

func scoreEntry(e CatalogEntry, terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	id := strings.ToLower(e.ID)
	name := strings.ToLower(e.Name)
	hay := id + " " + name + " " + strings.ToLower(e.Description)

	score := 0
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			continue
		}
		// Longer terms carry more signal than short ones.
		score += len(t)
		if strings.HasPrefix(id, t) || strings.HasPrefix(name, t) {
			score += 3
		}
	}
	return score
}
