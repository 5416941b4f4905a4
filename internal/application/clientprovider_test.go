package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeintel/fleetpanel/internal/application"
)

func TestPlatformClientProvider_GetReturnsInitialClient(t *testing.T) {
	client := &fakeGateway{}
	provider := application.NewPlatformClientProvider(client)

	got := provider.Get()
	assert.Same(t, client, got)
}

func TestPlatformClientProvider_ReplaceSwapsClient(t *testing.T) {
	original := &fakeGateway{}
	replacement := &fakeGateway{}

	provider := application.NewPlatformClientProvider(original)
	assert.Same(t, original, provider.Get())

	provider.Replace(replacement)
	assert.Same(t, replacement, provider.Get())
}

func TestPlatformClientProvider_HasClientReturnsFalseForNil(t *testing.T) {
	provider := application.NewPlatformClientProvider(nil)

	require.False(t, provider.HasClient())

	client := &fakeGateway{}
	provider.Replace(client)

	require.True(t, provider.HasClient())
}

func TestPlatformClientProvider_ConcurrentGetReplaceSafety(t *testing.T) {
	client1 := &fakeGateway{}
	client2 := &fakeGateway{}
	provider := application.NewPlatformClientProvider(client1)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	// Half the goroutines read, half write.
	for range goroutines {
		go func() {
			defer wg.Done()
			got := provider.Get()
			// Should be either client1 or client2, never nil.
			assert.NotNil(t, got)
		}()
		go func() {
			defer wg.Done()
			provider.Replace(client2)
		}()
	}

	wg.Wait()

	// After all goroutines finish, client should be client2.
	assert.Same(t, client2, provider.Get())
}
