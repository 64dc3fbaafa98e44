package company

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/internal/observability"
)

// Store is the persistence facade behind the hub. Implementations must
// tolerate repeated deletes of the same id.
type Store interface {
	SaveCompany(ctx context.Context, c Company) error
	DeleteCompany(ctx context.Context, id string) error
	LoadCompanies(ctx context.Context) ([]Company, error)
}

// Hub is the registry mapping company identifiers to company
// definitions. All operations are atomic with respect to each other: a
// Get immediately after a successful Register always finds the company.
type Hub struct {
	companies map[string]Company
	store     Store
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// HubConfig configures a hub
type HubConfig struct {
	// Store is optional; without it the hub is memory-only.
	Store  Store
	Logger zerolog.Logger
}

// NewHub creates a hub, loading existing companies from the store when
// one is configured
func NewHub(cfg HubConfig) (*Hub, error) {
	h := &Hub{
		companies: make(map[string]Company),
		store:     cfg.Store,
		logger:    cfg.Logger,
	}

	if h.store != nil {
		companies, err := h.store.LoadCompanies(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load companies: %w", err)
		}
		for _, c := range companies {
			h.companies[c.ID] = c
		}
		h.logger.Info().Int("count", len(companies)).Msg("Loaded companies from store")
	}

	observability.SetCompaniesRegistered(len(h.companies))

	return h, nil
}

// Register adds a company to the hub. A missing id is assigned;
// registering an existing id fails with ErrDuplicateID and leaves the
// first record unchanged.
func (h *Hub) Register(c Company) (string, error) {
	if c.Name == "" {
		return "", fmt.Errorf("company name is required")
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.companies[c.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}

	if h.store != nil {
		if err := h.store.SaveCompany(context.Background(), c); err != nil {
			return "", fmt.Errorf("failed to persist company: %w", err)
		}
	}

	h.companies[c.ID] = c
	observability.SetCompaniesRegistered(len(h.companies))

	h.logger.Info().
		Str("companyId", c.ID).
		Str("name", c.Name).
		Int("roles", len(c.Roles)).
		Int("objectives", len(c.Objectives)).
		Msg("Company registered")

	return c.ID, nil
}

// Get returns the company registered under id
func (h *Hub) Get(id string) (Company, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, exists := h.companies[id]
	if !exists {
		return Company{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
	}
	return c, nil
}

// Deregister removes a company. Idempotent: removing an unknown id is
// a no-op.
func (h *Hub) Deregister(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.companies[id]; !exists {
		return nil
	}

	if h.store != nil {
		if err := h.store.DeleteCompany(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete company: %w", err)
		}
	}

	delete(h.companies, id)
	observability.SetCompaniesRegistered(len(h.companies))

	h.logger.Info().Str("companyId", id).Msg("Company deregistered")

	return nil
}

// List returns all registered companies sorted by name
func (h *Hub) List() []Company {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Company, 0, len(h.companies))
	for _, c := range h.companies {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// Search returns companies whose name contains the substring.
// Matching is case-sensitive.
func (h *Hub) Search(substring string) []Company {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := []Company{}
	for _, c := range h.companies {
		if strings.Contains(c.Name, substring) {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})

	return out
}
