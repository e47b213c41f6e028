package http

import (
	"sync"
	"testing"
	"time"

	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamerCount(sm *StreamManager) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.streamers)
}

func replied(id string) (*domain.Session, *domain.Session) {
	prev := domain.NewSession(id, false)
	next := prev.Clone()
	next.Transcript.Append(domain.RoleAssistant, "Which columns should be dropped?")
	return prev, next
}

func TestStreamManager_BeginNeedsSubscriber(t *testing.T) {
	sm := NewStreamManager(0, logging.NewNop())

	_, ok := sm.begin("s1", "hello there")
	assert.False(t, ok)
	assert.Zero(t, streamerCount(sm))

	ch, cancel := sm.Subscribe("s1")
	tokens, ok := sm.begin("s1", "hello there")
	require.True(t, ok)
	assert.Equal(t, 1, streamerCount(sm))

	cancel()
	assert.Zero(t, streamerCount(sm))
	for range tokens {
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestStreamManager_PublishWithoutSubscribers(t *testing.T) {
	sm := NewStreamManager(0, logging.NewNop())
	sm.Publish(replied("s1"))
	assert.Zero(t, streamerCount(sm))
}

func TestStreamManager_NoStreamerOutlivesSubscribers(t *testing.T) {
	sm := NewStreamManager(time.Millisecond, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := sm.Subscribe("s1")
			cancel()
		}()
		go func() {
			defer wg.Done()
			sm.Publish(replied("s1"))
		}()
	}
	wg.Wait()

	assert.False(t, sm.HasSubscribers("s1"))
	assert.Zero(t, streamerCount(sm))
}
