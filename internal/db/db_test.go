package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-database-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestClose_NilPool(t *testing.T) {
	db := &DB{}
	assert.NotPanics(t, func() { db.Close() })
}
