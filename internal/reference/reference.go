// Package reference serves the static glossary and accommodations data.
package reference

import (
	"bufio"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	"iep-rehearsal/internal/domain"

	"github.com/go-playground/validator/v10"
)

//go:embed data/glossary.md data/accommodations/*.json
var dataFS embed.FS

const (
	glossaryFile      = "glossary.md"
	accommodationsDir = "accommodations"
)

var (
	letterHeading = regexp.MustCompile(`^##\s+\*\*(\w)\*\*`)
	termHeading   = regexp.MustCompile(`^###\s+\*\*(.+?)\*\*`)

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Library holds the parsed reference data. It is read-only after Load.
type Library struct {
	terms        []domain.GlossaryTerm
	disabilities []domain.Disability
}

// Load reads the embedded data.
func Load() (*Library, error) {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		return nil, fmt.Errorf("open embedded reference data: %w", err)
	}
	return LoadFS(sub)
}

// LoadFS reads glossary.md and accommodations/*.json from fsys.
func LoadFS(fsys fs.FS) (*Library, error) {
	f, err := fsys.Open(glossaryFile)
	if err != nil {
		return nil, fmt.Errorf("open glossary: %w", err)
	}
	defer f.Close()
	terms, err := ParseGlossary(f)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(fsys, path.Join(accommodationsDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list accommodations: %w", err)
	}
	disabilities := make([]domain.Disability, 0, len(files))
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var d domain.Disability
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := validate.Struct(&d); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		disabilities = append(disabilities, d)
	}
	sort.Slice(disabilities, func(i, j int) bool { return disabilities[i].Name < disabilities[j].Name })

	return &Library{terms: terms, disabilities: disabilities}, nil
}

// ParseGlossary reads "## **X**" letter sections and "### **Term**" entries.
// A definition is the run of non-blank lines after its heading, ended by a
// blank line or a "---" rule. Terms with no definition are skipped.
func ParseGlossary(r io.Reader) ([]domain.GlossaryTerm, error) {
	var (
		terms      []domain.GlossaryTerm
		letter     string
		term       string
		collecting bool
		def        []string
	)
	flush := func() {
		if term != "" && len(def) > 0 {
			terms = append(terms, domain.GlossaryTerm{
				Term:       term,
				Definition: strings.TrimSpace(strings.Join(def, " ")),
				Letter:     letter,
			})
		}
		term, def, collecting = "", nil, false
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := letterHeading.FindStringSubmatch(line); m != nil {
			flush()
			letter = m[1]
			continue
		}
		if m := termHeading.FindStringSubmatch(line); m != nil {
			flush()
			term = m[1]
			collecting = true
			continue
		}
		if !collecting {
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "---") {
			flush()
			continue
		}
		def = append(def, strings.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	flush()
	return terms, nil
}

// Glossary returns the terms whose term or definition contains query,
// case-insensitively. An empty query returns every term.
func (l *Library) Glossary(query string) []domain.GlossaryTerm {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.GlossaryTerm, 0, len(l.terms))
	for _, t := range l.terms {
		if q == "" || strings.Contains(strings.ToLower(t.Term), q) || strings.Contains(strings.ToLower(t.Definition), q) {
			out = append(out, t)
		}
	}
	return out
}

// Letters groups terms by their letter section.
func Letters(terms []domain.GlossaryTerm) map[string][]domain.GlossaryTerm {
	grouped := make(map[string][]domain.GlossaryTerm)
	for _, t := range terms {
		grouped[t.Letter] = append(grouped[t.Letter], t)
	}
	return grouped
}

// Accommodations filters disabilities by name and, when presentation is
// set, keeps only the accommodations addressing it. Disabilities left with
// no accommodation are dropped.
func (l *Library) Accommodations(disability, presentation string) []domain.Disability {
	name := strings.ToLower(strings.TrimSpace(disability))
	pres := strings.ToLower(strings.TrimSpace(presentation))

	out := make([]domain.Disability, 0, len(l.disabilities))
	for _, d := range l.disabilities {
		if name != "" && !strings.Contains(strings.ToLower(d.Name), name) {
			continue
		}
		if pres == "" {
			out = append(out, d)
			continue
		}
		var matched []domain.Accommodation
		for _, a := range d.AccommodationsModifications {
			if strings.Contains(strings.ToLower(a.AddressesPresentation), pres) {
				matched = append(matched, a)
			}
		}
		if len(matched) == 0 {
			continue
		}
		d.AccommodationsModifications = matched
		out = append(out, d)
	}
	return out
}

// Disabilities returns the disability names in display order.
func (l *Library) Disabilities() []string {
	names := make([]string, 0, len(l.disabilities))
	for _, d := range l.disabilities {
		names = append(names, d.Name)
	}
	return names
}
