package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"10 Tips for Better Drip Campaigns!", "10-tips-for-better-drip-campaigns"},
		{"  Leading & trailing  ", "leading-trailing"},
		{"Ünïcode gets stripped", "n-code-gets-stripped"},
		{"already-a-slug", "already-a-slug"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.title), tt.title)
	}
}
