package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

type stubScraper struct {
	rec    *eshop.GameRecord
	err    error
	calls  int
	closed bool
}

func (s *stubScraper) Scrape(context.Context, string) (*eshop.GameRecord, error) {
	s.calls++
	return s.rec, s.err
}

func (s *stubScraper) Close() { s.closed = true }

func TestCompositePrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &stubScraper{rec: &eshop.GameRecord{TitleID: "0100000000010000"}}
	fallback := &stubScraper{}
	c := NewComposite(primary, fallback, nil)

	rec, err := c.Scrape(context.Background(), "0100000000010000")
	require.NoError(t, err)
	require.Equal(t, "0100000000010000", rec.TitleID)
	require.Zero(t, fallback.calls, "fallback must not run when primary succeeds")
}

func TestCompositeFallsBackOnNotFound(t *testing.T) {
	t.Parallel()

	primary := &stubScraper{err: ErrNotFound}
	fallback := &stubScraper{rec: &eshop.GameRecord{TitleID: "0100000000010000", NameZhHant: "Game"}}
	c := NewComposite(primary, fallback, nil)

	rec, err := c.Scrape(context.Background(), "0100000000010000")
	require.NoError(t, err)
	require.Equal(t, "Game", rec.NameZhHant)
	require.Equal(t, 1, fallback.calls)
}

func TestCompositeBlockedPassesThrough(t *testing.T) {
	t.Parallel()

	primary := &stubScraper{err: ErrBlocked}
	fallback := &stubScraper{}
	c := NewComposite(primary, fallback, nil)

	_, err := c.Scrape(context.Background(), "0100000000010000")
	require.ErrorIs(t, err, ErrBlocked)
	require.Zero(t, fallback.calls, "a blocked edge blocks the static path too")
}

func TestCompositeUnresolvedTitleIDPassesThrough(t *testing.T) {
	t.Parallel()

	primary := &stubScraper{err: ErrTitleIDUnresolved}
	fallback := &stubScraper{}
	c := NewComposite(primary, fallback, nil)

	_, err := c.Scrape(context.Background(), "70010000095550")
	require.ErrorIs(t, err, ErrTitleIDUnresolved)
	require.Zero(t, fallback.calls)
}

func TestCompositeJoinsBothErrors(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("chrome crashed")
	fallbackErr := errors.New("connection refused")
	c := NewComposite(&stubScraper{err: primaryErr}, &stubScraper{err: fallbackErr}, nil)

	_, err := c.Scrape(context.Background(), "0100000000010000")
	require.ErrorIs(t, err, primaryErr)
	require.ErrorIs(t, err, fallbackErr)
}

func TestCompositeCloseClosesBoth(t *testing.T) {
	t.Parallel()

	primary := &stubScraper{}
	fallback := &stubScraper{}
	NewComposite(primary, fallback, nil).Close()
	require.True(t, primary.closed)
	require.True(t, fallback.closed)
}
