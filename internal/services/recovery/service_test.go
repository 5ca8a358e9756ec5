package recovery_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/relayserver/relaytest"
	"heartx/internal/services/keyvault"
	"heartx/internal/services/recovery"
	"heartx/internal/store"
)

var fastArgon = crypto.Params{KDF: crypto.KDFArgon2id, Time: 1, Memory: 1024, Threads: 1}

func TestGenerateCode_Format(t *testing.T) {
	code, err := recovery.GenerateCode()
	require.NoError(t, err)
	require.Len(t, code, 17)
	assert.Equal(t, byte('-'), code[8])

	norm, err := recovery.Normalize(strings.ToUpper(code))
	require.NoError(t, err)
	assert.Equal(t, strings.ReplaceAll(code, "-", ""), norm)

	other, err := recovery.GenerateCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestNormalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "short", "abcdefgh-abcdefg!", "abcdefgh-abcdefghi"} {
		_, err := recovery.Normalize(in)
		assert.ErrorIs(t, err, recovery.ErrInvalidCode, in)
	}
	norm, err := recovery.Normalize(" ABCD efgh-1234 5678 ")
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh12345678", norm)
}

func TestRecover_RoundTripAndFailures(t *testing.T) {
	ctx := context.Background()
	r := relaytest.New(t)
	_, c := r.Register(t, "alice")
	svc := recovery.New(c, nil, recovery.WithParams(fastArgon), recovery.WithLogger(logging.Discard()))

	_, err := svc.Recover(ctx, "aaaaaaaa-aaaaaaaa")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	code, err := recovery.GenerateCode()
	require.NoError(t, err)
	require.NoError(t, svc.Register(ctx, code, relaytest.Password))

	got, err := svc.Recover(ctx, strings.ToUpper(code))
	require.NoError(t, err)
	assert.Equal(t, relaytest.Password, got)

	_, err = svc.Recover(ctx, "aaaaaaaa-aaaaaaaa")
	assert.Equal(t, domain.ErrAuthFailure, err)
	_, err = svc.Recover(ctx, "not a code")
	assert.Equal(t, domain.ErrAuthFailure, err)

	vault := keyvault.New(c, keyvault.WithLogger(logging.Discard()), keyvault.WithLockParams(relaytest.FastLock))
	sess, err := vault.Login(ctx, "alice", got)
	require.NoError(t, err)
	sess.Close()
}

func TestRegister_ReplacesPreviousCode(t *testing.T) {
	ctx := context.Background()
	r := relaytest.New(t)
	_, c := r.Register(t, "alice")
	svc := recovery.New(c, nil, recovery.WithParams(fastArgon), recovery.WithLogger(logging.Discard()))

	first, err := recovery.GenerateCode()
	require.NoError(t, err)
	second, err := recovery.GenerateCode()
	require.NoError(t, err)
	require.NoError(t, svc.Register(ctx, first, "pw-one"))
	require.NoError(t, svc.Register(ctx, second, "pw-two"))

	_, err = svc.Recover(ctx, first)
	assert.ErrorIs(t, err, domain.ErrAuthFailure)
	got, err := svc.Recover(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "pw-two", got)
}

func TestReset_DropsRelayAndLocalState(t *testing.T) {
	ctx := context.Background()
	r := relaytest.New(t)
	_, c := r.Register(t, "alice")

	local := store.NewLocal(t.TempDir(), "alice")
	require.NoError(t, local.SaveAux("bob", "hi"))

	svc := recovery.New(c, local, recovery.WithParams(fastArgon), recovery.WithLogger(logging.Discard()))
	code, err := recovery.GenerateCode()
	require.NoError(t, err)
	require.NoError(t, svc.Register(ctx, code, relaytest.Password))

	require.NoError(t, svc.Reset(ctx))

	_, err = c.FetchKeys(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Recover(ctx, code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	notes, err := local.LoadAux()
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, again := r.Register(t, "alice")
	_, err = again.FetchKeys(ctx)
	require.NoError(t, err, "identity can register afresh")
}
