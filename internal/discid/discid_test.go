package discid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     int
	}{
		{"Game (Disc 1).iso", 1},
		{"Game [Disc 2].iso", 2},
		{"Game - Disc 3.iso", 3},
		{"Game_Disc4.iso", 4},
		{"Game disc5.iso", 5},
		{"Game CD6.iso", 6},
		{"Game (CD 2).iso", 2},
		{"Game D7.iso", 7},
		{"Game_d2.iso", 2},
		{"Game.iso", 1},
		{"Game (Disc 0).iso", 1},
		{"Plain Title With Numbers 1999.iso", 1},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.filename))
		})
	}
}
