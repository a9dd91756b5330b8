package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keywords(t *testing.T, a, b []string) KeywordSet {
	t.Helper()
	ks, err := NewKeywordSet("Solr", a, "ES", b)
	require.NoError(t, err)
	return ks
}

func TestCountSampleMail(t *testing.T) {
	t.Parallel()

	content := "You may remember myself and Ant from a couple of years back when we\n" +
		"were replacing a legacy Xapian-based search system with Solr.\n" +
		"we're replacing a Solr (DSE) system with ElasticSearch.\n" +
		"a few things ElasticSearch related sometime this week?"

	r := Count(content, keywords(t, []string{"solr"}, []string{"elasticsearch"}))
	assert.Equal(t, Result{CountA: 2, CountB: 2}, r)
	assert.Equal(t, CategoryB, r.Decide())
}

func TestCountIgnoresCase(t *testing.T) {
	t.Parallel()

	text := "Lucene and SOLR, solr and Solr; ElasticSearch once"
	lower := Count(text, keywords(t, []string{"solr", "lucene"}, []string{"elasticsearch"}))
	upper := Count(strings.ToUpper(text), keywords(t, []string{"SOLR", "Lucene"}, []string{"ELASTICSEARCH"}))

	assert.Equal(t, lower, upper)
	assert.Equal(t, Result{CountA: 4, CountB: 1}, lower)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Category
	}{
		{name: "three to one", text: "solr solr solr elasticsearch", want: CategoryA},
		{name: "tie goes to b", text: "solr elasticsearch solr elasticsearch", want: CategoryB},
		{name: "b wins", text: "elasticsearch", want: CategoryB},
		{name: "no match", text: "nothing relevant here", want: None},
	}

	ks := keywords(t, []string{"solr"}, []string{"elasticsearch"})
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Count(tc.text, ks).Decide())
		})
	}
}

func TestCountNonOverlapping(t *testing.T) {
	t.Parallel()

	r := Count("aaaa", keywords(t, []string{"aa"}, []string{"zz"}))
	assert.Equal(t, 2, r.CountA)
}

func TestNewKeywordSet(t *testing.T) {
	t.Parallel()

	ks, err := NewKeywordSet("Solr", []string{" Solr ", "solr", "", "Lucene"}, "ES", []string{"Elasticsearch"})
	require.NoError(t, err)
	assert.Equal(t, []string{"solr", "lucene"}, ks.A())
	assert.Equal(t, []string{"elasticsearch"}, ks.B())
	assert.Equal(t, "Solr", ks.Name(CategoryA))
	assert.Equal(t, "ES", ks.Name(CategoryB))
	assert.Empty(t, ks.Name(None))

	_, err = NewKeywordSet("A", []string{"search"}, "B", []string{"SEARCH"})
	assert.ErrorContains(t, err, "both categories")

	_, err = NewKeywordSet("A", []string{" "}, "B", []string{"x"})
	assert.Error(t, err)
}
