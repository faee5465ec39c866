package azmqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amenzhinsky/azcore/azctx"
	"github.com/amenzhinsky/azcore/result"
	"github.com/amenzhinsky/azcore/span"
)

func TestRequestTable(t *testing.T) {
	t.Parallel()

	tbl := NewRequestTable(2)
	app := azctx.Application()

	a, err := tbl.Add(span.FromString("corr-a"), app, 1000, 5000, "owner-a")
	require.NoError(t, err)
	a.MessageID = 7

	_, err = tbl.Add(span.FromString("corr-b"), app, 1000, 5000, "owner-b")
	require.NoError(t, err)

	// The table is bounded.
	_, err = tbl.Add(span.FromString("corr-c"), app, 1000, 5000, nil)
	assert.ErrorIs(t, err, result.ErrOutOfMemory)

	g, err := tbl.FindByCorrelationID(span.FromString("corr-a"))
	require.NoError(t, err)
	assert.Equal(t, "owner-a", g.Owner)

	g, err = tbl.FindByMessageID(7)
	require.NoError(t, err)
	assert.Equal(t, "corr-a", string(g.CorrelationID))

	_, err = tbl.FindByMessageID(99)
	assert.ErrorIs(t, err, result.ErrItemNotFound)

	require.NoError(t, tbl.Remove(span.FromString("corr-a")))
	assert.ErrorIs(t, tbl.Remove(span.FromString("corr-a")), result.ErrItemNotFound)
	assert.Equal(t, 1, tbl.Len())
}

func TestRequestTableDeadlines(t *testing.T) {
	t.Parallel()

	tbl := NewRequestTable(2)
	app := azctx.Application()

	r, err := tbl.Add(span.FromString("corr"), app, 1000, 10000, nil)
	require.NoError(t, err)

	assert.Nil(t, tbl.FirstExpired(5000), "request expired before its deadline")
	assert.Equal(t, r, tbl.FirstExpired(11001))

	// Cancelling the parent context expires the request implicitly.
	parent := azctx.WithExpiration(app, azctx.NoExpiration)
	tbl2 := NewRequestTable(1)
	_, err = tbl2.Add(span.FromString("x"), parent, 0, azctx.NoExpiration, nil)
	require.NoError(t, err)
	parent.Cancel()
	assert.NotNil(t, tbl2.FirstExpired(1))
}
