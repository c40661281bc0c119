package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameComparator(t *testing.T) {
	tests := []struct {
		name          string
		caseSensitive bool
		a, b          string
		want          int
	}{
		{"sensitive equal", true, "readme", "readme", 0},
		{"sensitive case differs", true, "README", "readme", -1},
		{"sensitive order", true, "b", "a", 1},
		{"insensitive case differs", false, "README", "readme", 0},
		{"insensitive order", false, "Apple", "banana", -1},
		{"insensitive non ascii", false, "ÉCOLE", "école", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := NewNameComparator(tt.caseSensitive)
			assert.Equal(t, tt.want, cmp.Compare(tt.a, tt.b))
			assert.Equal(t, tt.want == 0, cmp.Equal(tt.a, tt.b))
			assert.Equal(t, tt.caseSensitive, cmp.CaseSensitive())
		})
	}
}
