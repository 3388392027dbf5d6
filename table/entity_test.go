package table

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type book struct {
	*Entity
}

func (b book) Title() string {
	v, _ := b.Get("title")
	s, _ := v.(string)
	return s
}

func bookClasses(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()
	require.NoError(t, r.Register(Class{
		Name: "Book",
		Getters: map[string]Getter{
			"GetLabel": func(e *Entity) (any, error) {
				return fmt.Sprintf("%v (%v)", e.Value("title"), e.Value("year")), nil
			},
			"GetYear": func(e *Entity) (any, error) {
				return "computed", nil
			},
		},
		Wrap: func(e *Entity) any { return book{e} },
	}))
	require.NoError(t, r.Register(Class{Name: "Special"}))
	return r
}

func TestEntity_Overlay(t *testing.T) {
	m, _ := fixture(t, "book")
	ctx := context.Background()

	e, err := m.Get(ctx, 1)
	require.NoError(t, err)

	v, err := e.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "R.U.R.", v)

	// overlay shadows the row
	require.NoError(t, e.Set("title", "Robots"))
	v, err = e.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Robots", v)
	assert.True(t, e.IsSet("title"))

	// a nil overlay value is not set, even though the row has a value
	require.NoError(t, e.Set("title", nil))
	assert.False(t, e.IsSet("title"))
	v, err = e.Get("title")
	require.NoError(t, err)
	assert.Nil(t, v)

	// arbitrary keys live in the overlay only
	require.NoError(t, e.Set("rating", 5))
	assert.Equal(t, 5, e.Value("rating"))
	assert.Equal(t, 5, e.ToMap()["rating"])

	// reads fall back to the row
	assert.Equal(t, int64(1920), e.Value("year"))
}

func TestEntity_IsSetFallsBackToRow(t *testing.T) {
	m, _ := fixture(t, "book")

	e, err := m.Get(context.Background(), 4)
	require.NoError(t, err)

	assert.True(t, e.IsSet("cs_title"))
	assert.False(t, e.IsSet("en_title"), "NULL column is not set")
	assert.False(t, e.IsSet("missing"))
}

func TestEntity_Unset(t *testing.T) {
	m, _ := fixture(t, "book")

	e, err := m.Get(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, e.Set("title", "Robots"))
	require.NoError(t, e.Unset("title"))

	_, err = e.Get("title")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NotContains(t, e.ToMap(), "title")
}

func TestEntity_MissingKey(t *testing.T) {
	m, _ := fixture(t, "book")

	e, err := m.Get(context.Background(), 1)
	require.NoError(t, err)

	_, err = e.Get("publisher")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), `"publisher"`)
	assert.Nil(t, e.Value("publisher"))
}

func TestEntity_LangVariants(t *testing.T) {
	m, _ := fixture(t, "book")
	ctx := context.Background()
	require.NoError(t, m.SetLang("cs"))

	e, err := m.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "cs", e.Lang())

	v, err := e.Get("title_")
	require.NoError(t, err)
	assert.Equal(t, "Osudy dobreho vojaka Svejka", v)

	e.SetLang("en")
	v, err = e.Get("title_")
	require.NoError(t, err)
	assert.Equal(t, "The Good Soldier Svejk", v)

	// variant writes land on the language column
	require.NoError(t, e.Set("title_", "Svejk"))
	assert.Equal(t, "Svejk", e.ToMap()["en_title"])
	assert.True(t, e.IsSet("title_"))
}

func TestEntity_LangVariantWithoutLang(t *testing.T) {
	m, _ := fixture(t, "book")

	e, err := m.Get(context.Background(), 3)
	require.NoError(t, err)

	_, err = e.Get("title_")
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	assert.Contains(t, err.Error(), `"title_"`)

	assert.Error(t, e.Set("title_", "x"))
	assert.False(t, e.IsSet("title_"))

	err = e.Unset("title_")
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	assert.Equal(t, "Osudy dobreho vojaka Svejka", e.Value("cs_title"), "a rejected unset leaves the row alone")

	require.NoError(t, e.SetLang("cs").Unset("title_"))
	assert.NotContains(t, e.ToMap(), "cs_title")
}

func TestEntity_GetterPreferred(t *testing.T) {
	st := fixtureStore(t)
	m := managerFor(t, st, "book", &Settings{Tables: map[string]string{"book": "Book"}}, WithClasses(bookClasses(t)))

	e, err := m.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Book", e.Class())

	v, err := e.Get("label")
	require.NoError(t, err)
	assert.Equal(t, "R.U.R. (computed)", v)

	// the getter wins over the row and the overlay
	require.NoError(t, e.Set("year", 2000))
	v, err = e.Get("year")
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
}

func TestEntity_Record(t *testing.T) {
	st := fixtureStore(t)
	m := managerFor(t, st, "book", &Settings{Tables: map[string]string{"book": "Book"}}, WithClasses(bookClasses(t)))

	e, err := m.Get(context.Background(), 2)
	require.NoError(t, err)

	b, ok := As[book](e)
	require.True(t, ok)
	assert.Equal(t, "Krakatit", b.Title())

	m.SetRowClass("Special")
	e, err = m.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Same(t, e, e.Record())
	_, ok = As[book](e)
	assert.False(t, ok)
}

func TestEntity_UpdateAndDelete(t *testing.T) {
	m, _ := fixture(t, "book")
	ctx := context.Background()

	e, err := m.Get(ctx, 1)
	require.NoError(t, err)

	changed, err := e.Update(ctx, map[string]any{"year": 1921})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1921), e.Value("year"))

	deleted, err := e.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = m.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = e.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestEntity_Ref(t *testing.T) {
	m, _ := fixture(t, "book")
	ctx := context.Background()

	e, err := m.Get(ctx, 3)
	require.NoError(t, err)

	author, err := e.Ref(ctx, "author", "")
	require.NoError(t, err)
	assert.Equal(t, "author", author.Table())
	assert.Equal(t, "Jaroslav Hasek", author.Value("name"))

	_, err = e.Ref(ctx, "publisher", "")
	assert.True(t, IsNotFound(err))
}

func TestEntity_RefNull(t *testing.T) {
	m, _ := fixture(t, "book")
	ctx := context.Background()

	e, err := m.Create(ctx, map[string]any{"title": "Anonymous"})
	require.NoError(t, err)

	_, err = e.Ref(ctx, "author", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestEntity_Related(t *testing.T) {
	m, _ := fixture(t, "author")
	ctx := context.Background()

	authors, err := m.FindAll().FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 3)

	books, err := authors[0].Related("book", "").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, primaries(t, books))
	assert.Equal(t, "book", books[0].Table())

	books, err = authors[1].Related("book", "author_id").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, primaries(t, books))

	n, err := authors[2].Related("book", "").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// every author was served from the same load
	assert.Len(t, authors[0].set.groups, 1)
}

func TestEntity_RelatedRefined(t *testing.T) {
	m, _ := fixture(t, "author")
	ctx := context.Background()

	author, err := m.Get(ctx, 1)
	require.NoError(t, err)

	books, err := author.Related("book", "").Where("year > ?", 1921).Order("year DESC").FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, primaries(t, books))

	books, err = author.Related("book", "").Order("year DESC").Limit(1).Offset(1).FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, primaries(t, books))

	books, err = author.Related("book", "").Offset(5).FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestEntity_RelatedClassResolution(t *testing.T) {
	st := fixtureStore(t)
	settings := &Settings{Tables: map[string]string{"book": "Book"}}
	m := managerFor(t, st, "author", settings, WithClasses(bookClasses(t)), WithRowClass("Special"))
	ctx := context.Background()

	author, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Special", author.Class())

	// the manager's row class does not leak into related tables
	books, err := author.Related("book", "").FetchAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, books)
	assert.Equal(t, "Book", books[0].Class())

	books, err = author.Related("book", "").SetRowClass("Special").FetchAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, books)
	assert.Equal(t, "Special", books[0].Class())
}

func TestEntity_SubRelation(t *testing.T) {
	m, _ := fixture(t, "author")
	ctx := context.Background()

	author, err := m.Get(ctx, 1)
	require.NoError(t, err)

	titles, err := author.SubRelation(ctx, "book:title", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"R.U.R.", "Krakatit", "Valka s mloky"}, titles)

	titles, err = author.SubRelation(ctx, "book:title", func(g *GroupedSelection) {
		g.Where("year < ?", 1930)
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"R.U.R.", "Krakatit"}, titles)

	_, err = author.SubRelation(ctx, "book", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
}
