package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRequestsOffsets(t *testing.T) {
	t.Parallel()

	requests, err := GenerateRequests("https://www.tripadvisor.com/SearchForums?q=AI+trip", 3, 20)
	require.NoError(t, err)
	require.Len(t, requests, 3)

	require.Equal(t, 0, requests[0].PageIndex)
	require.NotContains(t, requests[0].URL, "o=", "page 0 is the base URL itself")
	require.Contains(t, requests[1].URL, "o=20")
	require.Contains(t, requests[2].URL, "o=40")
	for _, req := range requests {
		require.Contains(t, req.URL, "q=AI+trip")
	}
}

func TestGenerateRequestsSinglePage(t *testing.T) {
	t.Parallel()

	requests, err := GenerateRequests("https://www.tripadvisor.com/SearchForums?q=x", 1, 20)
	require.NoError(t, err)
	require.Len(t, requests, 1)
}

func TestGenerateRequestsDeterministic(t *testing.T) {
	t.Parallel()

	first, err := GenerateRequests("https://Example.COM/SearchForums?b=2&a=1#frag", 4, 20)
	require.NoError(t, err)
	second, err := GenerateRequests("https://Example.COM/SearchForums?b=2&a=1#frag", 4, 20)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Canonicalization: lowercased host, sorted query, no fragment.
	require.Equal(t, "https://example.com/SearchForums?a=1&b=2", first[0].URL)
}

func TestGenerateRequestsBadURL(t *testing.T) {
	t.Parallel()

	_, err := GenerateRequests("://not-a-url", 2, 20)
	require.Error(t, err)
}
