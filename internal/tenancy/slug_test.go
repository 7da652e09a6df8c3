package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"Alice Smith", "alice-smith"},
		{"  Ünïcödé  Näme ", "unicode-name"},
		{"José's Team!", "joses-team"},
		{"a--b__c..d", "a-bcd"},
		{"bob.jones", "bobjones"},
		{"john_doe", "johndoe"},
		{"first.last - team", "firstlast-team"},
		{"---", ""},
		{"", ""},
		{"日本", ""},
		{"Team 42", "team-42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestBaseSlug(t *testing.T) {
	assert.Equal(t, "alice", baseSlug("Alice", "someone@example.com"))
	assert.Equal(t, "bobjones", baseSlug("", "bob.jones@example.com"))
	assert.Equal(t, "bobjones", baseSlug("!!!", "bob.jones@example.com"))
	assert.Equal(t, "johndoe", baseSlug("", "john_doe@example.com"))
	assert.Equal(t, "tenant", baseSlug("", "@example.com"))
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "carol", DefaultName("carol@example.com"))
	assert.Equal(t, "no-at-sign", DefaultName("no-at-sign"))
}
