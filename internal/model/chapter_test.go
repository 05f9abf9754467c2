package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChapterStatus(t *testing.T) {
	s, err := ParseChapterStatus(" Polished ")
	require.NoError(t, err)
	require.Equal(t, ChapterStatusPolished, s)

	_, err = ParseChapterStatus("failed")
	require.Error(t, err)
}

func TestChapterStatusScanRejectsUnknown(t *testing.T) {
	var s ChapterStatus
	require.NoError(t, s.Scan([]byte("pending")))
	require.Equal(t, ChapterStatusPending, s)
	require.Error(t, s.Scan("archived"))
	require.Error(t, s.Scan(42))

	_, err := ChapterStatus("draft").Value()
	require.Error(t, err)
}

func TestChapterBookText(t *testing.T) {
	c := &Chapter{}
	require.Equal(t, "", c.BookText())
	c.TranscriptText = StringPtr("raw")
	require.Equal(t, "raw", c.BookText())
	c.PolishedText = StringPtr("polished")
	require.Equal(t, "polished", c.BookText())
}

func TestStringPtr(t *testing.T) {
	require.Nil(t, StringPtr("   "))
	require.Equal(t, "x", *StringPtr("x"))
}
