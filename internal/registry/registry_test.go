package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	document "github.com/modmdb/modm/internal/document"
)

func TestRegisterAndGet(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	user := document.NewMeta("User", "users")
	Register(user)

	got, err := Get("User")
	require.NoError(t, err)
	require.Same(t, user, got)

	_, err = Get("Ghost")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotRegistered))

	require.Panics(t, func() { Register(&document.Meta{}) })
}

func TestForCollection(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	blogPost := document.NewMeta("BlogPost", "blog_post")
	Register(blogPost)

	got, err := ForCollection("blog_post")
	require.NoError(t, err)
	require.Same(t, blogPost, got)

	_, err = ForCollection("comments")
	require.True(t, errors.Is(err, ErrNotRegistered))
}

func TestTypeNameForCollection(t *testing.T) {
	cases := map[string]string{
		"users":         "Users",
		"blog_post":     "BlogPost",
		"a_b_c":         "ABC",
		"__weird__name": "WeirdName",
		"":              "",
	}
	for in, want := range cases {
		require.Equal(t, want, TypeNameForCollection(in), "collection %q", in)
	}
}
