package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/apperr"
)

func TestParseRangeNoHeaderServesWholeFile(t *testing.T) {
	rng, ok, err := parseRange("", 1000)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, parsedRange{}, rng)
}

func TestParseRangeSingleSpec(t *testing.T) {
	rng, ok, err := parseRange("bytes=100-199", 1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), rng.start)
	require.Equal(t, int64(199), rng.end)
}

func TestParseRangeOpenEndClampsToFileSize(t *testing.T) {
	rng, ok, err := parseRange("bytes=900-", 1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(900), rng.start)
	require.Equal(t, int64(999), rng.end)
}

func TestParseRangeEndBeyondSizeClamps(t *testing.T) {
	rng, ok, err := parseRange("bytes=0-10000", 1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(999), rng.end)
}

func TestParseRangeOnlyFirstOfMultipleSpecsHonored(t *testing.T) {
	rng, ok, err := parseRange("bytes=0-9,20-29", 1000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), rng.start)
	require.Equal(t, int64(9), rng.end)
}

func TestParseRangeSuffixRangeRejected(t *testing.T) {
	_, ok, err := parseRange("bytes=-500", 1000)
	require.False(t, ok)
	require.Error(t, err)
	require.True(t, apperr.IsBadRequest(err))
}

func TestParseRangeWrongUnitRejected(t *testing.T) {
	_, ok, err := parseRange("items=0-1", 1000)
	require.False(t, ok)
	require.Error(t, err)
}

func TestParseRangeStartOutOfBoundsRejected(t *testing.T) {
	_, ok, err := parseRange("bytes=1000-1010", 1000)
	require.False(t, ok)
	require.Error(t, err)
}

func TestParseRangeMalformedEndRejected(t *testing.T) {
	_, ok, err := parseRange("bytes=10-5", 1000)
	require.False(t, ok)
	require.Error(t, err)
}

func TestContentTypeForKnownExtensions(t *testing.T) {
	require.Equal(t, "audio/mpeg", contentTypeFor("a/b.mp3"))
	require.Equal(t, "audio/flac", contentTypeFor("a/b.FLAC"))
	require.Equal(t, "application/octet-stream", contentTypeFor("a/b.unknown"))
}
