package provider

import (
	"context"
	"testing"

	"identity-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string                      { return s.name }
func (s stubProvider) AuthCodeURL(string, string) string { return "" }
func (s stubProvider) Exchange(context.Context, string, string) (map[string]any, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubProvider{"google"}, stubProvider{"yandex"})

	p, err := r.Get("Google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = r.Get("facebook")
	assert.ErrorIs(t, err, auth.ErrUnsupportedProvider)

	assert.ElementsMatch(t, []string{"google", "yandex"}, r.Names())
}
