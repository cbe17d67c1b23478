package election

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessagesAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	fetchErr := &FetchError{Kind: KindConnection, URL: "https://example.com", Err: cause}
	assert.Equal(t, "fetch https://example.com: connection failure: dial tcp: refused", fetchErr.Error())
	assert.ErrorIs(t, fetchErr, cause)
	assert.True(t, fetchErr.Retryable())

	status := &FetchError{Kind: KindProtocolStatus, URL: "https://example.com", StatusCode: 404}
	assert.Equal(t, "fetch https://example.com: unexpected status 404", status.Error())
	assert.False(t, status.Retryable())

	parseErr := &ParseError{URL: "u", Field: "valid", Reason: "cell not found"}
	assert.Equal(t, `parse u: field "valid": cell not found`, parseErr.Error())

	writeErr := &WriteError{Path: "out.csv", Op: "rename", Err: ErrInvalidResponse}
	assert.ErrorIs(t, writeErr, ErrInvalidResponse)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", KindOf(nil))
	require.Equal(t, "network/timeout", KindOf(fmt.Errorf("x: %w", &FetchError{Kind: KindTimeout})))
	require.Equal(t, "protocol", KindOf(&FetchError{Kind: KindProtocolStatus}))
	require.Equal(t, "parse/parties", KindOf(&ParseError{Field: "parties"}))
	require.Equal(t, "write", KindOf(&WriteError{}))
	require.Equal(t, "other", KindOf(errors.New("x")))
}

func TestParseFailureMode(t *testing.T) {
	t.Parallel()

	mode, ok := ParseFailureMode("")
	require.True(t, ok)
	require.Equal(t, ModeStrict, mode)
	mode, ok = ParseFailureMode("partial")
	require.True(t, ok)
	require.Equal(t, ModePartial, mode)
	_, ok = ParseFailureMode("lenient")
	require.False(t, ok)
}
