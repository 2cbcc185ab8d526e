package notify

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/dungeon/internal/metrics"
)

func TestPublish(t *testing.T) {
	h := NewHub(zerolog.Nop(), nil)

	_, a, cancelA := h.Subscribe()
	defer cancelA()
	_, b, cancelB := h.Subscribe()
	defer cancelB()

	h.Publish(Message{Type: TypeFileChange, Created: 1})

	assert.Equal(t, Message{Type: TypeFileChange, Created: 1}, <-a)
	assert.Equal(t, Message{Type: TypeFileChange, Created: 1}, <-b)
}

func TestPublishCoalesces(t *testing.T) {
	h := NewHub(zerolog.Nop(), nil)
	_, ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Message{Type: TypeFileChange, Created: 1})
	h.Publish(Message{Type: TypeFileChange, Created: 2})

	assert.Equal(t, int64(1), (<-ch).Created)
	select {
	case msg := <-ch:
		t.Fatalf("unexpected second message %+v", msg)
	default:
	}
}

func TestCancel(t *testing.T) {
	m := metrics.New("test")
	h := NewHub(zerolog.Nop(), m)

	id1, _, cancel1 := h.Subscribe()
	id2, ch, cancel2 := h.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, h.Len())

	cancel2()
	cancel2()
	assert.Equal(t, 1, h.Len())

	_, ok := <-ch
	assert.False(t, ok)

	// publishing after cancel must not hit the closed channel
	assert.NotPanics(t, func() { h.Publish(Message{Type: TypeFileChange}) })

	cancel1()
	assert.Equal(t, 0, h.Len())
}

func TestConcurrentSubscribe(t *testing.T) {
	h := NewHub(zerolog.Nop(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, cancel := h.Subscribe()
			cancel()
		}()
		go func() {
			defer wg.Done()
			h.Publish(Message{Type: TypeFileChange})
		}()
	}
	wg.Wait()

	require.Equal(t, 0, h.Len())
}
