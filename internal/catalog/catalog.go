// Package catalog loads the ticket catalog from YAML and seeds the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/internos/internal/domain/model"
	"github.com/okian/internos/internal/domain/rubric"
)

// ErrInvalidCatalog is returned for unreadable or inconsistent catalog files.
var ErrInvalidCatalog = errors.New("invalid ticket catalog")

// Entry is one ticket as written in the catalog file.
type Entry struct {
	ID               int64           `yaml:"id"`
	Kind             string          `yaml:"kind"`
	Title            string          `yaml:"title"`
	RepoURL          string          `yaml:"repo_url"`
	TimeLimitMinutes int             `yaml:"time_limit_minutes"`
	Description      string          `yaml:"description"`
	Rubric           *rubric.Weights `yaml:"rubric,omitempty"`
}

type file struct {
	Tickets []Entry `yaml:"tickets"`
}

// Ticket converts the entry to the domain model.
func (e Entry) Ticket() model.Ticket {
	return model.Ticket{
		ID:          e.ID,
		Kind:        e.Kind,
		Title:       e.Title,
		RepoURL:     e.RepoURL,
		TimeLimit:   time.Duration(e.TimeLimitMinutes) * time.Minute,
		Description: e.Description,
		Weights:     e.Rubric,
	}
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) ([]model.Ticket, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	seen := make(map[int64]struct{}, len(f.Tickets))
	out := make([]model.Ticket, 0, len(f.Tickets))
	for i, e := range f.Tickets {
		switch {
		case e.ID <= 0:
			return nil, fmt.Errorf("%w: ticket #%d: id must be positive", ErrInvalidCatalog, i)
		case e.Kind == "":
			return nil, fmt.Errorf("%w: ticket %d: kind is required", ErrInvalidCatalog, e.ID)
		case e.RepoURL == "":
			return nil, fmt.Errorf("%w: ticket %d: repo_url is required", ErrInvalidCatalog, e.ID)
		case e.TimeLimitMinutes < 0:
			return nil, fmt.Errorf("%w: ticket %d: negative time limit", ErrInvalidCatalog, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate ticket id %d", ErrInvalidCatalog, e.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Rubric != nil {
			if err := e.Rubric.Validate(); err != nil {
				return nil, fmt.Errorf("%w: ticket %d: %w", ErrInvalidCatalog, e.ID, err)
			}
		}
		out = append(out, e.Ticket())
	}
	return out, nil
}

// Load reads the catalog at path.
func Load(path string) ([]model.Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return Parse(data)
}

// Upserter stores tickets.
type Upserter interface {
	UpsertTicket(ctx context.Context, t model.Ticket) (model.Ticket, error)
}

// Seed upserts every ticket and returns how many were written.
func Seed(ctx context.Context, store Upserter, tickets []model.Ticket) (int, error) {
	for i, t := range tickets {
		if _, err := store.UpsertTicket(ctx, t); err != nil {
			return i, fmt.Errorf("seed ticket %d: %w", t.ID, err)
		}
	}
	return len(tickets), nil
}
