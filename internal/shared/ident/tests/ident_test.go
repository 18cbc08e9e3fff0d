package tests

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
)

func TestNewID_PrefixPerKind(t *testing.T) {
	cases := map[ident.Kind]string{
		ident.KindWorkspace:   "wrk_",
		ident.KindFolder:      "fld_",
		ident.KindRequest:     "req_",
		ident.KindResponse:    "res_",
		ident.KindEnvironment: "env_",
		ident.KindVariable:    "var_",
		ident.KindMockRoute:   "mck_",
		ident.KindOAuthToken:  "oat_",
	}
	for kind, prefix := range cases {
		id := ident.NewID(kind)
		require.True(t, strings.HasPrefix(id, prefix), "kind %s id %s", kind, id)

		_, err := uuid.Parse(strings.TrimPrefix(id, prefix))
		require.NoError(t, err)

		got, ok := ident.KindOf(id)
		require.True(t, ok)
		require.Equal(t, kind, got)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := ident.NewID(ident.KindRequest)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNewID_SettingsIsFixed(t *testing.T) {
	require.Equal(t, ident.SettingsID, ident.NewID(ident.KindSettings))
	require.Equal(t, ident.SettingsID, ident.NewID(ident.KindSettings))

	kind, ok := ident.KindOf(ident.SettingsID)
	require.True(t, ok)
	require.Equal(t, ident.KindSettings, kind)
}

func TestNewID_UnknownKindPanics(t *testing.T) {
	require.Panics(t, func() { ident.NewID(ident.Kind("Bogus")) })
}

func TestKindOf_Unknown(t *testing.T) {
	_, ok := ident.KindOf("zzz_123")
	require.False(t, ok)
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	c := ident.NewClockFrom(func() time.Time { return fixed })

	a := c.Now()
	b := c.Now()
	require.Equal(t, int64(1_700_000_000_000), a)
	require.Equal(t, a+1, b)
}

func TestClock_BackwardsJumpStillIncreases(t *testing.T) {
	now := time.UnixMilli(2_000)
	c := ident.NewClockFrom(func() time.Time { return now })

	a := c.Now()
	now = time.UnixMilli(1_000)
	b := c.Now()
	require.Greater(t, b, a)
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := ident.NewClock()

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ts := c.Now()
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 800)
}
