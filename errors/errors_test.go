package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	err := NotFoundError("no record for id %s", "abc123")
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Malformed))
	assert.Equal(t, "no record for id abc123", err.Error())
}

func TestIs_NonPkdError(t *testing.T) {
	assert.False(t, Is(fmt.Errorf("plain"), NotFound))
}

func TestConstructors_AssignExpectedType(t *testing.T) {
	cases := []struct {
		err error
		typ ErrorType
	}{
		{InternalServerError("boom"), InternalServer},
		{MalformedError("bad request body"), Malformed},
		{UnauthorizedError("no credentials"), Unauthorized},
		{ConflictError("sync_config already updated"), Conflict},
		{UnavailableError("ldap unreachable"), Unavailable},
	}
	for _, c := range cases {
		assert.True(t, Is(c.err, c.typ))
	}
}
