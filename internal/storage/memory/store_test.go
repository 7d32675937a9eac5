package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycounter/internal/model"
	"daycounter/internal/repository"
	"daycounter/internal/repository/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		return New()
	})
}

func TestFetchKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	late := model.NewEvent("late", now.Add(5*time.Hour), now)
	early := model.NewEvent("early", now.Add(time.Hour), now)
	require.NoError(t, s.Save(ctx, late))
	require.NoError(t, s.Save(ctx, early))

	// Replacing keeps the original slot.
	late.Title = "late v2"
	require.NoError(t, s.Save(ctx, late))

	got, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "late v2", got[0].Title)
	assert.Equal(t, "early", got[1].Title)
}
