package config

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"
)

func TestAdminAuthenticator_IssueThenAuthorize(t *testing.T) {
	auth := NewAdminAuthenticator([]byte("s3cr3t"), "admin-write", 100)

	token, err := auth.IssueToken("admin-write", time.Minute)
	must.NoError(t, err)
	must.NoError(t, auth.Authorize(token))
}

func TestAdminAuthenticator_RejectsWrongScope(t *testing.T) {
	auth := NewAdminAuthenticator([]byte("s3cr3t"), "admin-write", 100)

	token, err := auth.IssueToken("read-only", time.Minute)
	must.NoError(t, err)
	must.Error(t, auth.Authorize(token))
}

func TestAdminAuthenticator_RejectsExpiredToken(t *testing.T) {
	auth := NewAdminAuthenticator([]byte("s3cr3t"), "admin-write", 100)

	token, err := auth.IssueToken("admin-write", -time.Minute)
	must.NoError(t, err)
	must.Error(t, auth.Authorize(token))
}

func TestAdminAuthenticator_RejectsTokenFromDifferentSecret(t *testing.T) {
	issuer := NewAdminAuthenticator([]byte("s3cr3t"), "admin-write", 100)
	verifier := NewAdminAuthenticator([]byte("different"), "admin-write", 100)

	token, err := issuer.IssueToken("admin-write", time.Minute)
	must.NoError(t, err)
	must.Error(t, verifier.Authorize(token))
}

func TestAdminAuthenticator_EnforcesRateLimit(t *testing.T) {
	auth := NewAdminAuthenticator([]byte("s3cr3t"), "admin-write", 1)
	token, err := auth.IssueToken("admin-write", time.Minute)
	must.NoError(t, err)

	must.NoError(t, auth.Authorize(token))
	must.NoError(t, auth.Authorize(token))
	must.Error(t, auth.Authorize(token))
}
