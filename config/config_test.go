package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultDSN, cfg.Database.DSN)
	assert.Empty(t, cfg.Lang)
	assert.Empty(t, cfg.Settings().Tables)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "rowgate.yaml", `
database:
  dsn: books.db
lang: EN
tables:
  book: Book
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultDriver, cfg.Database.Driver, "unset fields keep defaults")
	assert.Equal(t, "books.db", cfg.Database.DSN)
	assert.Equal(t, "EN", cfg.Lang, "the tag is kept as written")

	class, ok := cfg.Settings().ClassFor("book")
	assert.True(t, ok)
	assert.Equal(t, "Book", class)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	path := writeFile(t, "rowgate.yml", "langauge: en\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "langauge")
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "rowgate.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultDSN, cfg.Database.DSN)
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "rowgate.cue", `
database: {
	driver: "pgx"
	dsn:    "postgres://localhost/books"
}
lang: "cs"
tables: book: "Book"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/books", cfg.Database.DSN)
	assert.Equal(t, "cs", cfg.Lang)
	assert.Equal(t, map[string]string{"book": "Book"}, cfg.Tables)
}

func TestLoad_CUEIncomplete(t *testing.T) {
	path := writeFile(t, "rowgate.cue", `lang: string`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUE")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "rowgate.yaml", "database:\n  dsn: books.db\nlang: cs\n")

	t.Setenv("ROWGATE_DB_DSN", "other.db")
	t.Setenv("ROWGATE_LANG", "en-GB")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.db", cfg.Database.DSN)
	assert.Equal(t, "en-GB", cfg.Lang)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unsupported format", "rowgate.toml", "lang = 'en'", "unsupported config format"},
		{"bad driver", "rowgate.yaml", "database:\n  driver: oracle\n", "unsupported driver"},
		{"bad lang", "rowgate.yaml", "lang: 'not a tag!'\n", "invalid language tag"},
		{"empty dsn", "rowgate.yaml", "database:\n  dsn: ''\n", "dsn is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Open(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "open.db")

	st, err := cfg.Open()
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "sqlite3", st.Dialect().Driver)
}
