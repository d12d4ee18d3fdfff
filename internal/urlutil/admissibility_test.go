package urlutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitterScheme(t *testing.T) {
	a, err := NewAdmitter("https://example.com/", 10, nil, nil, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectScheme, a.Admit(context.Background(), "ftp://example.com/file", 1))
	assert.Equal(t, RejectScheme, a.Admit(context.Background(), "not a url", 1))
}

func TestAdmitterExternalHost(t *testing.T) {
	a, err := NewAdmitter("https://example.com/", 10, nil, nil, true, false, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectExternalHost, a.Admit(context.Background(), "https://other.com/page", 1))
	assert.Equal(t, RejectNone, a.Admit(context.Background(), "https://example.com/page", 1))
}

func TestAdmitterBackwardLink(t *testing.T) {
	// Root path "/blog" - with allowBackwardLinks=false, only URLs whose
	// path is "/blog" itself or a segment extension of it are admitted;
	// a sibling path outside "/blog" is a backward link.
	a, err := NewAdmitter("https://example.com/blog", 10, nil, nil, false, true, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectBackwardLink, a.Admit(context.Background(), "https://example.com/about", 1))
	assert.Equal(t, RejectBackwardLink, a.Admit(context.Background(), "https://example.com/blogger", 1))
	assert.Equal(t, RejectNone, a.Admit(context.Background(), "https://example.com/blog", 1))
	assert.Equal(t, RejectNone, a.Admit(context.Background(), "https://example.com/blog/post-1", 1))

	allowBack, err := NewAdmitter("https://example.com/blog", 10, nil, nil, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectNone, allowBack.Admit(context.Background(), "https://example.com/about", 1))
}

func TestAdmitterMaxDepth(t *testing.T) {
	a, err := NewAdmitter("https://example.com/", 2, nil, nil, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectMaxDepth, a.Admit(context.Background(), "https://example.com/deep", 3))
}

func TestAdmitterIncludeExclude(t *testing.T) {
	a, err := NewAdmitter("https://example.com/", 10, []string{`/blog/`}, []string{`/blog/drafts/`}, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectNone, a.Admit(context.Background(), "https://example.com/blog/post-1", 1))
	assert.Equal(t, RejectExcludePattern, a.Admit(context.Background(), "https://example.com/blog/drafts/x", 1))
	assert.Equal(t, RejectNotIncluded, a.Admit(context.Background(), "https://example.com/about", 1))
}
