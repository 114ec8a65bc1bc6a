package storage

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKeyPreservesPathStructure(t *testing.T) {
	require.Equal(t,
		"attachments/conv-1/1700000000000_floor-plan",
		sanitizeKey("attachments/conv-1/1700000000000_floor plan.pdf"))
}

func TestSanitizeKeyStripsRejectedCharacters(t *testing.T) {
	require.Equal(t, "a/b", sanitizeKey("/a///b.png/"))
	require.Equal(t, "report-2024", sanitizeKey("report(2024).pdf"))
	require.Empty(t, sanitizeKey("///"))
	require.Empty(t, sanitizeKey(""))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{}, zerolog.New(io.Discard))
	require.Error(t, err)
}
