package catalog_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := catalog.Load()
	require.NoError(t, err)

	ids := c.FixedIDs()
	assert.Contains(t, ids, "disagreeing-politely")
	assert.Len(t, ids, 11)

	def, err := c.FreeForm("custom-request-data")
	require.NoError(t, err)
	assert.Equal(t, domain.DifficultyEasy, def.Difficulty)
	assert.Len(t, def.PotentialOutcomes, 4)
	require.Len(t, def.InitialOptions, 3)
	assert.Equal(t, domain.StanceRights, def.InitialOptions[1].Type)
	assert.Equal(t, "I would like to see the formal assessment results and documentation supporting this recommendation.", def.InitialOptions[1].Text)

	fixed, err := c.Fixed("disagreeing-politely")
	require.NoError(t, err)
	assert.Len(t, fixed.Steps, 11)
	assert.Nil(t, fixed.Steps[0].Condition)
	require.NotNil(t, fixed.Steps[8].Condition)
	assert.Equal(t, "expr", fixed.Steps[8].Condition.Kind())
}

func TestLookupMissing(t *testing.T) {
	c, err := catalog.Load()
	require.NoError(t, err)

	_, err = c.Fixed("nope")
	assert.True(t, errors.Is(err, domain.ErrScenarioNotFound))
	_, err = c.FreeForm("disagreeing-politely")
	assert.True(t, errors.Is(err, domain.ErrScenarioNotFound))
}

func TestList(t *testing.T) {
	c, err := catalog.Load()
	require.NoError(t, err)

	all := c.List(catalog.Filter{Mode: domain.ModeFreeForm})
	assert.Equal(t, 14, all.Total)
	assert.Equal(t, 3, all.TotalPages)
	assert.Len(t, all.Items, catalog.DefaultPageSize)

	last := c.List(catalog.Filter{Mode: domain.ModeFreeForm, Page: 3})
	assert.Len(t, last.Items, 2)

	beyond := c.List(catalog.Filter{Mode: domain.ModeFreeForm, Page: 9})
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)

	easy := c.List(catalog.Filter{Mode: domain.ModeFreeForm, Difficulty: domain.DifficultyEasy, PageSize: 50})
	for _, s := range easy.Items {
		assert.Equal(t, domain.DifficultyEasy, s.Difficulty)
	}
	assert.NotEmpty(t, easy.Items)

	both := c.List(catalog.Filter{PageSize: 100})
	assert.Equal(t, 25, both.Total)
}

const validFixed = `
id: tiny
title: Tiny
difficulty: Easy
background: bg
steps:
  - school: hello
    options:
      - user: hi
        responseType: cooperative
        nextStep: 1
  - school: bye
    condition:
      choice: {position: 0, option: 0}
    options:
      - user: ok
        responseType: neutral
`

const validFreeForm = `
id: free
title: Free
difficulty: Moderate
background: bg
initialSchoolLine: hello
initialOptions:
  - {type: interests, text: a}
  - {type: rights, text: b}
  - {type: power, text: c}
potentialOutcomes: [one, two]
`

func TestLoadFSValidation(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := catalog.LoadFS(fstest.MapFS{
			"fixed/tiny.yaml":    {Data: []byte(validFixed)},
			"freeform/free.yaml": {Data: []byte(validFreeForm)},
		})
		require.NoError(t, err)
		want := []domain.ScenarioSummary{
			{ID: "tiny", Mode: domain.ModeFixed, Title: "Tiny", Difficulty: domain.DifficultyEasy},
			{ID: "free", Mode: domain.ModeFreeForm, Title: "Free", Difficulty: domain.DifficultyModerate},
		}
		if diff := cmp.Diff(want, c.List(catalog.Filter{}).Items); diff != "" {
			t.Errorf("summaries mismatch (-want +got):\n%s", diff)
		}
	})

	bad := map[string]fstest.MapFS{
		"next step out of range": {"fixed/x.yaml": {Data: []byte(`
id: x
title: X
difficulty: Easy
background: bg
steps:
  - school: s
    options:
      - {user: u, responseType: neutral, nextStep: 3}
`)}},
		"bad difficulty": {"fixed/x.yaml": {Data: []byte(`
id: x
title: X
difficulty: Impossible
background: bg
steps:
  - school: s
    options:
      - {user: u, responseType: neutral}
`)}},
		"bad condition": {"fixed/x.yaml": {Data: []byte(`
id: x
title: X
difficulty: Easy
background: bg
steps:
  - school: s
    condition: {expr: "option(("}
    options:
      - {user: u, responseType: neutral}
`)}},
		"duplicate stance": {"freeform/x.yaml": {Data: []byte(`
id: x
title: X
difficulty: Easy
background: bg
initialSchoolLine: hi
initialOptions:
  - {type: interests, text: a}
  - {type: interests, text: b}
  - {type: power, text: c}
`)}},
		"two initial options": {"freeform/x.yaml": {Data: []byte(`
id: x
title: X
difficulty: Easy
background: bg
initialSchoolLine: hi
initialOptions:
  - {type: interests, text: a}
  - {type: rights, text: b}
`)}},
		"broken yaml": {"freeform/x.yaml": {Data: []byte("id: [")}},
	}
	for name, fsys := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.LoadFS(fsys)
			assert.Error(t, err)
		})
	}
}
