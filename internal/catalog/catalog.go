package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"iep-rehearsal/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios/fixed/*.yaml scenarios/freeform/*.yaml
var scenarioFS embed.FS

const (
	fixedDir    = "fixed"
	freeformDir = "freeform"

	DefaultPageSize = 6
)

// Catalog is the read-only registry of scenarios for both modes. Definitions
// it hands out are shared and must not be mutated.
type Catalog struct {
	fixed     map[string]*domain.ScenarioDefinition
	freeform  map[string]*domain.CustomScenarioDefinition
	summaries []domain.ScenarioSummary
}

// Load reads the embedded scenario files.
func Load() (*Catalog, error) {
	sub, err := fs.Sub(scenarioFS, "scenarios")
	if err != nil {
		return nil, fmt.Errorf("open embedded scenarios: %w", err)
	}
	return LoadFS(sub)
}

// LoadFS reads fixed/*.yaml and freeform/*.yaml from fsys, validates every
// definition and compiles branch rules.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		fixed:    make(map[string]*domain.ScenarioDefinition),
		freeform: make(map[string]*domain.CustomScenarioDefinition),
	}

	fixedFiles, err := fs.Glob(fsys, path.Join(fixedDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list fixed scenarios: %w", err)
	}
	for _, name := range fixedFiles {
		var def domain.ScenarioDefinition
		if err := readYAML(fsys, name, &def); err != nil {
			return nil, err
		}
		if err := ValidateFixed(&def); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		if _, dup := c.fixed[def.ID]; dup {
			return nil, fmt.Errorf("scenario %s: duplicate fixed scenario id %q", name, def.ID)
		}
		c.fixed[def.ID] = &def
		c.summaries = append(c.summaries, domain.ScenarioSummary{
			ID: def.ID, Mode: domain.ModeFixed, Title: def.Title, Description: def.Description,
			Category: def.Category, Difficulty: def.Difficulty,
		})
	}

	freeformFiles, err := fs.Glob(fsys, path.Join(freeformDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list free-form scenarios: %w", err)
	}
	for _, name := range freeformFiles {
		var def domain.CustomScenarioDefinition
		if err := readYAML(fsys, name, &def); err != nil {
			return nil, err
		}
		if err := ValidateFreeForm(&def); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		if _, dup := c.freeform[def.ID]; dup {
			return nil, fmt.Errorf("scenario %s: duplicate free-form scenario id %q", name, def.ID)
		}
		c.freeform[def.ID] = &def
		c.summaries = append(c.summaries, domain.ScenarioSummary{
			ID: def.ID, Mode: domain.ModeFreeForm, Title: def.Title, Description: def.Description,
			Category: def.Category, Difficulty: def.Difficulty,
		})
	}

	sort.Slice(c.summaries, func(i, j int) bool {
		if c.summaries[i].Mode != c.summaries[j].Mode {
			return c.summaries[i].Mode < c.summaries[j].Mode
		}
		return c.summaries[i].ID < c.summaries[j].ID
	})
	return c, nil
}

func readYAML(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Fixed returns the fixed-choice scenario with the given id.
func (c *Catalog) Fixed(id string) (*domain.ScenarioDefinition, error) {
	def, ok := c.fixed[id]
	if !ok {
		return nil, fmt.Errorf("%w: fixed %q", domain.ErrScenarioNotFound, id)
	}
	return def, nil
}

// FreeForm returns the free-form scenario with the given id.
func (c *Catalog) FreeForm(id string) (*domain.CustomScenarioDefinition, error) {
	def, ok := c.freeform[id]
	if !ok {
		return nil, fmt.Errorf("%w: free-form %q", domain.ErrScenarioNotFound, id)
	}
	return def, nil
}

// FixedIDs lists fixed scenario ids in sorted order.
func (c *Catalog) FixedIDs() []string {
	ids := make([]string, 0, len(c.fixed))
	for id := range c.fixed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Mode       domain.Mode
	Difficulty domain.Difficulty
	Category   string
	Page       int // 1-based
	PageSize   int
}

// Page is one page of scenario summaries.
type Page struct {
	Items      []domain.ScenarioSummary `json:"items"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
	Total      int                      `json:"total"`
	TotalPages int                      `json:"totalPages"`
}

// List returns the filtered, paginated summaries. Pages past the end are empty.
func (c *Catalog) List(f Filter) Page {
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	matched := make([]domain.ScenarioSummary, 0, len(c.summaries))
	for _, s := range c.summaries {
		if f.Mode != "" && s.Mode != f.Mode {
			continue
		}
		if f.Difficulty != "" && s.Difficulty != f.Difficulty {
			continue
		}
		if f.Category != "" && !strings.EqualFold(s.Category, f.Category) {
			continue
		}
		matched = append(matched, s)
	}

	page := Page{
		Items:      []domain.ScenarioSummary{},
		Page:       f.Page,
		PageSize:   f.PageSize,
		Total:      len(matched),
		TotalPages: (len(matched) + f.PageSize - 1) / f.PageSize,
	}
	start := (f.Page - 1) * f.PageSize
	if start >= len(matched) {
		return page
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page
}
