package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePredicate_Empty(t *testing.T) {
	p, err := ParsePredicate("")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParsePredicate_SingleClause(t *testing.T) {
	p, err := ParsePredicate("file_path = 'internal/foo.go'")
	require.NoError(t, err)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, "file_path", p.Clauses[0].Field)
	assert.Equal(t, "internal/foo.go", p.Clauses[0].Value)
}

func TestParsePredicate_ANDJoinedClauses(t *testing.T) {
	p, err := ParsePredicate("file_path = 'a.go' AND project = 'core'")
	require.NoError(t, err)
	require.Len(t, p.Clauses, 2)
	assert.Equal(t, "project", p.Clauses[1].Field)
	assert.Equal(t, "core", p.Clauses[1].Value)
}

func TestParsePredicate_UnsupportedField(t *testing.T) {
	_, err := ParsePredicate("bogus = 'x'")
	assert.Error(t, err)
}

func TestParsePredicate_UnquotedValue(t *testing.T) {
	_, err := ParsePredicate("file_path = a.go")
	assert.Error(t, err)
}

func TestPredicate_Matches(t *testing.T) {
	project := "core"
	row := VectorRow{FilePath: "a.go", Project: &project}

	p, err := ParsePredicate("file_path = 'a.go' AND project = 'core'")
	require.NoError(t, err)
	assert.True(t, p.Matches(row))

	p2, err := ParsePredicate("file_path = 'b.go'")
	require.NoError(t, err)
	assert.False(t, p2.Matches(row))
}

func TestPredicate_NilMatchesEverything(t *testing.T) {
	var p *Predicate
	assert.True(t, p.Matches(VectorRow{}))
}

func TestEqualsPredicate(t *testing.T) {
	p := EqualsPredicate("file_path", "a.go")
	assert.True(t, p.Matches(VectorRow{FilePath: "a.go"}))
	assert.False(t, p.Matches(VectorRow{FilePath: "b.go"}))
}
