package reference_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/reference"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGlossary(t *testing.T) {
	md := `# Title

intro text that is not a term

## **A**

### **Accommodation**
A change in how
a student learns.
---
### **Empty**

## **B**
### **BIP**
Behavior plan.`

	terms, err := reference.ParseGlossary(strings.NewReader(md))
	require.NoError(t, err)

	want := []domain.GlossaryTerm{
		{Term: "Accommodation", Definition: "A change in how a student learns.", Letter: "A"},
		{Term: "BIP", Definition: "Behavior plan.", Letter: "B"},
	}
	if diff := cmp.Diff(want, terms); diff != "" {
		t.Errorf("ParseGlossary mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbeddedLibrary(t *testing.T) {
	lib, err := reference.Load()
	require.NoError(t, err)

	all := lib.Glossary("")
	assert.NotEmpty(t, all)
	for _, term := range all {
		assert.NotEmpty(t, term.Letter, term.Term)
		assert.NotEmpty(t, term.Definition, term.Term)
	}

	fape := lib.Glossary("fape")
	require.NotEmpty(t, fape)
	assert.Equal(t, "FAPE", fape[0].Term)

	byDefinition := lib.Glossary("NON-DISABLED")
	require.Len(t, byDefinition, 1)
	assert.Equal(t, "L", byDefinition[0].Letter)

	assert.Empty(t, lib.Glossary("zzzz"))
	assert.Contains(t, reference.Letters(all), "A")

	names := lib.Disabilities()
	assert.Len(t, names, 3)
	assert.IsIncreasing(t, names)
}

func TestAccommodationsFilter(t *testing.T) {
	lib, err := reference.Load()
	require.NoError(t, err)

	assert.Len(t, lib.Accommodations("", ""), 3)

	adhd := lib.Accommodations("adhd", "")
	require.Len(t, adhd, 1)
	assert.Len(t, adhd[0].AccommodationsModifications, 3)

	reading := lib.Accommodations("", "slow, effortful")
	require.Len(t, reading, 1)
	assert.Contains(t, reading[0].Name, "Dyslexia")
	assert.Len(t, reading[0].AccommodationsModifications, 2)

	assert.Empty(t, lib.Accommodations("adhd", "sensory"))

	again := lib.Accommodations("adhd", "")
	assert.Len(t, again[0].AccommodationsModifications, 3, "filtering must not mutate the library")
}

func TestLoadFSRejectsInvalidRecords(t *testing.T) {
	fsys := fstest.MapFS{
		"glossary.md":              {Data: []byte("## **A**\n### **A term**\nDef.\n")},
		"accommodations/bad.json": {Data: []byte(`{"working_definition":"no name"}`)},
	}
	_, err := reference.LoadFS(fsys)
	assert.ErrorContains(t, err, "bad.json")

	fsys["accommodations/bad.json"] = &fstest.MapFile{Data: []byte(`{not json`)}
	_, err = reference.LoadFS(fsys)
	assert.ErrorContains(t, err, "parse")
}
