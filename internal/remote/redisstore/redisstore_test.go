package redisstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Spok95/ada-portal/internal/connectivity"
)

func TestWrap_ClassifiesReplies(t *testing.T) {
	cases := map[string]connectivity.Kind{
		"NOPERM this user has no permissions to run the 'get' command": connectivity.KindPermission,
		"WRONGPASS invalid username-password pair":                      connectivity.KindBlockedCredential,
		"NOAUTH Authentication required.":                               connectivity.KindBlockedCredential,
		"LOADING Redis is loading the dataset in memory":                connectivity.KindNetwork,
		"dial tcp 127.0.0.1:6379: connect: connection refused":          connectivity.KindNetwork,
		"ERR unknown command":                                           connectivity.KindUnknown,
	}
	for msg, kind := range cases {
		assert.Equal(t, kind, connectivity.Classify(wrap("get", errors.New(msg))), msg)
	}
}

func TestKeyNamespacing(t *testing.T) {
	s := &Store{namespace: "ada_portal"}
	assert.Equal(t, "ada_portal:users", s.key("users"))
}
