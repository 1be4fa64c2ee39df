package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/docgraph/internal/domain"
)

func TestProgressTracker_SetGetForget(t *testing.T) {
	tr := NewProgressTracker()

	_, ok := tr.Get("j1")
	assert.False(t, ok)

	tr.Set(Progress{ImportID: "j1", Status: domain.ImportStatusCloning, Progress: 30, Message: "Cloning repository..."})
	p, ok := tr.Get("j1")
	require.True(t, ok)
	assert.Equal(t, 30, p.Progress)

	tr.Forget("j1")
	_, ok = tr.Get("j1")
	assert.False(t, ok)
}

func TestProgressTracker_Subscribe(t *testing.T) {
	tr := NewProgressTracker()
	ch := tr.Subscribe("j1")
	other := tr.Subscribe("j2")

	tr.Set(Progress{ImportID: "j1", Progress: 10})
	got := <-ch
	assert.Equal(t, 10, got.Progress)
	assert.Empty(t, other)

	tr.Unsubscribe("j1", ch)
	_, open := <-ch
	assert.False(t, open)

	// No subscribers left; Set must not block.
	tr.Set(Progress{ImportID: "j1", Progress: 20})
	tr.Unsubscribe("j2", other)
}
