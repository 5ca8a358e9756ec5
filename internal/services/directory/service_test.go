package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/services/directory"
	"heartx/internal/store"
)

type dirRelay struct {
	dir   domain.Directory
	calls int
	err   error
}

func (r *dirRelay) FetchDirectory(context.Context) (domain.Directory, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make(domain.Directory, len(r.dir))
	for k, v := range r.dir {
		out[k] = v
	}
	return out, nil
}

func key(b byte) domain.X25519Public {
	var k domain.X25519Public
	k[0] = b
	return k
}

func TestGet_FetchesOnceThenServesFromMemory(t *testing.T) {
	relay := &dirRelay{dir: domain.Directory{"alice": key(1), "bob": key(2)}}
	svc := directory.New(relay, nil, directory.Config{}, logging.Discard())
	ctx := context.Background()

	pub, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, key(1), pub)

	pub, err = svc.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, key(2), pub)
	assert.Equal(t, 1, relay.calls, "bulk fetch covers every identity")
}

func TestGet_UnknownAfterFreshFetch(t *testing.T) {
	relay := &dirRelay{dir: domain.Directory{"alice": key(1)}}
	svc := directory.New(relay, nil, directory.Config{}, logging.Discard())

	_, err := svc.Get(context.Background(), "mallory")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_SnapshotTier(t *testing.T) {
	st := store.NewDirectoryFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveDirectory(domain.Directory{"carol": key(3)}, now.Add(-time.Hour)))

	relay := &dirRelay{dir: domain.Directory{"carol": key(9)}}
	svc := directory.New(relay, st, directory.Config{MaxAge: 2 * time.Hour}, logging.Discard())
	svc.SetClock(func() time.Time { return now })

	pub, err := svc.Get(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, key(3), pub)
	assert.Zero(t, relay.calls)
}

func TestGet_StaleSnapshotRefetches(t *testing.T) {
	st := store.NewDirectoryFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.SaveDirectory(domain.Directory{"carol": key(3)}, now.Add(-48*time.Hour)))

	relay := &dirRelay{dir: domain.Directory{"carol": key(9)}}
	svc := directory.New(relay, st, directory.Config{MaxAge: time.Hour}, logging.Discard())
	svc.SetClock(func() time.Time { return now })

	pub, err := svc.Get(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, key(9), pub)
	assert.Equal(t, 1, relay.calls)

	dir, fetchedAt, ok, err := st.LoadDirectory()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key(9), dir["carol"])
	assert.True(t, fetchedAt.Equal(now))
}

func TestRefresh_PicksUpNewKeys(t *testing.T) {
	relay := &dirRelay{dir: domain.Directory{"alice": key(1)}}
	svc := directory.New(relay, nil, directory.Config{}, logging.Discard())
	ctx := context.Background()

	_, err := svc.Get(ctx, "dave")
	require.ErrorIs(t, err, domain.ErrNotFound)

	relay.dir["dave"] = key(4)
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	pub, err := svc.Get(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, key(4), pub)
}

func TestGet_RelayErrorPropagates(t *testing.T) {
	relay := &dirRelay{err: domain.ErrNetworkFailure}
	svc := directory.New(relay, nil, directory.Config{}, logging.Discard())

	_, err := svc.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}
