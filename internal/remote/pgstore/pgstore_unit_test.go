package pgstore

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/Spok95/ada-portal/internal/connectivity"
)

func TestWrap_ClassifiesPgCodes(t *testing.T) {
	cases := map[string]connectivity.Kind{
		"42P01": connectivity.KindMissingStore,
		"3D000": connectivity.KindMissingStore,
		"42501": connectivity.KindPermission,
		"28P01": connectivity.KindBlockedCredential,
		"08006": connectivity.KindNetwork,
		"23505": connectivity.KindUnknown,
	}
	for code, kind := range cases {
		err := wrap("get users", &pgconn.PgError{Code: code, Message: "x"})
		assert.Equal(t, kind, connectivity.Classify(err), code)
	}
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, wrap("op", nil))
	assert.True(t, errors.Is(wrap("op", connectivity.ErrNetwork), connectivity.ErrNetwork))
}
