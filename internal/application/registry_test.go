package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolRegistryAllowIsIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()

	assert.True(t, registry.Allow("search_code"))
	assert.False(t, registry.Allow("search_code"))
	assert.Equal(t, []string{"search_code"}, registry.Allowed())

	assert.True(t, registry.Disallow("search_code"))
	assert.Empty(t, registry.Allowed())
}

func TestToolRegistryDisallowAbsentIsNoOp(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry("search_code")

	assert.False(t, registry.Disallow("fetch_docs"))
	assert.Equal(t, []string{"search_code"}, registry.Allowed())
}

func TestToolRegistryPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry("alpha", "beta", "gamma", "beta")
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, registry.Allowed())

	assert.True(t, registry.Disallow("beta"))
	assert.Equal(t, []string{"alpha", "gamma"}, registry.Allowed())

	assert.True(t, registry.Allow("beta"))
	assert.Equal(t, []string{"alpha", "gamma", "beta"}, registry.Allowed())
}

func TestToolRegistryIgnoresBlankNames(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()

	assert.False(t, registry.Allow(""))
	assert.False(t, registry.Allow("   "))
	assert.False(t, registry.Disallow(""))
	assert.Empty(t, registry.Allowed())
}

func TestToolRegistryAllowedReturnsCopy(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry("alpha", "beta")

	allowed := registry.Allowed()
	allowed[0] = "mutated"
	assert.Equal(t, []string{"alpha", "beta"}, registry.Allowed())
}
