package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassport(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "p123456", "P123456"},
		{"spaces removed", "E 123 456", "E123456"},
		{"separators removed", "e-123_456.7", "E1234567"},
		{"trimmed", "  P123456  ", "P123456"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Passport(tt.input))
		})
	}
}

func TestIsPassportShaped(t *testing.T) {
	assert.True(t, IsPassportShaped("P123456"))
	assert.True(t, IsPassportShaped("e 123 45"))
	assert.False(t, IsPassportShaped("P12"), "too short")
	assert.False(t, IsPassportShaped(""))
	assert.False(t, IsPassportShaped("Nguyễn Văn An"), "names are not passport shaped")
}

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"diacritics folded", "Nguyễn Văn An", "nguyenvanan"},
		{"d with stroke", "Đặng Thị Hoa", "dangthihoa"},
		{"spaces removed for fuzzy match", "He Wuyang", "hewuyang"},
		{"already plain", "john smith", "johnsmith"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Name(tt.input))
		})
	}
}

func TestRemoveDiacritics(t *testing.T) {
	assert.Equal(t, "Nguyen", RemoveDiacritics("Nguyễn"))
	assert.Equal(t, "Dong Trung", RemoveDiacritics("Đồng Trung"))
	assert.Equal(t, "", RemoveDiacritics(""))
}

func TestSplitKeys(t *testing.T) {
	keys := SplitKeys("P123456, E765432;\nK111222\tX999888")
	assert.Equal(t, []string{"P123456", "E765432", "K111222", "X999888"}, keys)

	assert.Empty(t, SplitKeys(""))
	assert.Empty(t, SplitKeys(" ,;\n"))
}
