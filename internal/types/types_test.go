package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Visibility
		want bool
	}{
		{"public equal", Visibility{Kind: Public}, Visibility{Kind: Public}, true},
		{"different kind", Visibility{Kind: Public}, Visibility{Kind: Private}, false},
		{"scoped same path", Visibility{Kind: ScopedPublic, Path: "crate::foo"}, Visibility{Kind: ScopedPublic, Path: "crate::foo"}, true},
		{"scoped different path", Visibility{Kind: ScopedPublic, Path: "crate::foo"}, Visibility{Kind: ScopedPublic, Path: "crate::bar"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.a.Equal(c.b))
		})
	}
}

func TestErrorReturnTypeFallible(t *testing.T) {
	assert.True(t, ErrorReturnType{Kind: ErrorReturnResult}.Fallible())
	assert.True(t, ErrorReturnType{Kind: ErrorReturnOption}.Fallible())
	assert.False(t, ErrorReturnType{Kind: ErrorReturnNeither}.Fallible())
}

func TestComplexityScoreAndLevel(t *testing.T) {
	m := ComplexityMetrics{Cyclomatic: 5, Lines: 40, CallSites: 3, Churn: 1, Public: true}
	// 2*5 + 40/10 + 3*3 + 2*1 + 10 = 10+4+9+2+10 = 35
	assert.Equal(t, 35, m.Score())
	assert.Equal(t, ImportanceHigh, LevelFor(m.Score()))

	low := ComplexityMetrics{Cyclomatic: 1, Lines: 3}
	assert.Equal(t, ImportanceLow, LevelFor(low.Score()))

	test := ComplexityMetrics{Cyclomatic: 20, Lines: 100, Public: true, IsTest: true}
	assert.Equal(t, 0, test.Score())
}

func TestDiffSummaryTotalChanges(t *testing.T) {
	var d DiffSummary
	assert.Equal(t, 0, d.TotalChanges())
	d.Added = append(d.Added, DiffAdded{Path: "a.rs", Symbols: 1})
	d.Modified = append(d.Modified, DiffModified{Path: "b.rs"})
	assert.Equal(t, 2, d.TotalChanges())
}
