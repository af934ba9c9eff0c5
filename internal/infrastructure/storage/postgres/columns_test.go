package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stamps struct {
	CreatedAt time.Time `db:"created_at"`
}

type sampleRow struct {
	stamps
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Notes *string `db:"notes"`
	Temp  string  `db:"-"`
	Plain string
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"created_at", "id", "name", "notes"}, Columns[sampleRow]())
}

func TestToMap(t *testing.T) {
	now := time.Now()
	row := &sampleRow{stamps: stamps{CreatedAt: now}, ID: 7, Name: "roles", Temp: "x"}

	m := ToMap(row, "id")

	assert.Equal(t, map[string]any{
		"created_at": now,
		"name":       "roles",
		"notes":      (*string)(nil),
	}, m)
	assert.Nil(t, ToMap((*sampleRow)(nil)))
	assert.Nil(t, ToMap(42))
}
