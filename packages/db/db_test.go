package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	client, err := NewClient("sqlite://" + path)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Exec(`CREATE TABLE jobs (id INTEGER PRIMARY KEY, name TEXT, state TEXT)`))
	require.NoError(t, client.Exec(`INSERT INTO jobs (name, state) VALUES ('backup', 'done'), ('restore', 'queued')`))
	return client
}

func TestQuery(t *testing.T) {
	client := newTestClient(t)

	result, err := client.Query(`SELECT id, name, state FROM jobs ORDER BY id`)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "state"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "backup", result.Rows[0]["name"])
	assert.Equal(t, "queued", result.Rows[1]["state"])
}

func TestQueryColumn(t *testing.T) {
	client := newTestClient(t)

	count, err := client.QueryColumn(`SELECT COUNT(*) AS n FROM jobs`, "n")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// empty column name selects the first column
	name, err := client.QueryColumn(`SELECT name FROM jobs WHERE state = 'done'`, "")
	require.NoError(t, err)
	assert.Equal(t, "backup", name)
}

func TestQueryColumnErrors(t *testing.T) {
	client := newTestClient(t)

	_, err := client.QueryColumn(`SELECT name FROM jobs WHERE state = 'missing'`, "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows")

	_, err = client.QueryColumn(`SELECT name FROM jobs`, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "nope"`)
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"sqlite://./test.db", "./test.db", false},
		{"sqlite:test.db", "test.db", false},
		{"test.db", "test.db", false},
		{"postgres://localhost/db", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := parseConnectionString(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
		} else {
			require.NoError(t, err, tt.input)
			assert.Equal(t, tt.want, got)
		}
	}
}
