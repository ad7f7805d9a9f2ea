package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/value"
	"github.com/carina-lang/carina/providers/testprovider"
)

func TestRegistryDispatchesToRegisteredProvider(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(testprovider.New())

	obs, err := reg.Create(context.Background(), "test.resource", value.Map{"name": value.String("main")})
	require.NoError(t, err)
	require.NotEmpty(t, obs.ProviderID)

	read, err := reg.Read(context.Background(), "test.resource", obs.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, obs.ProviderID, read.ProviderID)
}

func TestRegistryRejectsUnregisteredType(t *testing.T) {
	reg := provider.NewRegistry()
	_, err := reg.Create(context.Background(), "aws.vpc", value.Map{})
	assert.Error(t, err)
}

func TestRegistryReadNotFoundIsDetectable(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(testprovider.New())

	_, err := reg.Read(context.Background(), "test.resource", "nonexistent")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}

func TestRegistrySchemasAggregatesAcrossProviders(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(testprovider.New())

	schemas := reg.Schemas()
	require.Contains(t, schemas, "test.resource")
	assert.Equal(t, "test.resource", schemas["test.resource"].TypeName)
}

func TestRegistryLaterRegistrationWinsForSharedType(t *testing.T) {
	reg := provider.NewRegistry()
	first := testprovider.New()
	second := testprovider.New()
	reg.Register(first)
	reg.Register(second)

	obs, err := reg.Create(context.Background(), "test.resource", value.Map{"name": value.String("x")})
	require.NoError(t, err)

	_, err = first.Read(context.Background(), "test.resource", obs.ProviderID)
	assert.Error(t, err, "the first provider never saw the Create; the second, later-registered one handled it")
}
