package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockly-app/sessionkit/internal/apitest"
)

type cli struct {
	t         *testing.T
	apiBase   string
	store     string
	storePath string
}

func (c cli) run(stdin string, args ...string) (string, string, error) {
	c.t.Helper()
	cmd, ref := c.command(stdin, args...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), errors.Join(err, ref.Close())
}

func (c cli) command(stdin string, args ...string) (*cobra.Command, *appRef) {
	c.t.Helper()

	cmd, ref := rootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	base := []string{
		"--env-file", filepath.Join(c.t.TempDir(), "missing.env"),
		"--api-base", c.apiBase,
		"--store", c.store,
		"--store-path", c.storePath,
		"--log-level", "error",
	}
	cmd.SetArgs(append(args, base...))
	return cmd, ref
}

func newCLI(t *testing.T) (cli, *apitest.Server) {
	srv := apitest.New(t)
	srv.AddAccount(apitest.Account{ID: 42, Username: "alice", Password: "pw", FirstName: "Alice", LastName: "Doe"})
	return cli{t: t, apiBase: srv.URL, store: "file", storePath: filepath.Join(t.TempDir(), "credentials.json")}, srv
}

func TestCLI_SessionLifecycle(t *testing.T) {
	c, srv := newCLI(t)

	_, _, err := c.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)

	out, _, err := c.run("pw\n", "login", "-u", "alice")
	require.NoError(t, err)
	assert.Equal(t, "signed in as Alice Doe (id 42)\n", out)

	out, _, err = c.run("", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe (id 42)\n", out)

	out, _, err = c.run("", "get", "/api/v1/products/", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 2`)
	assert.Contains(t, out, `"Coffee"`)

	srv.RevokeAll()
	_, _, err = c.run("", "get", "/api/v1/products/")
	assert.ErrorIs(t, err, errSessionEnded)

	_, _, err = c.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn, "401 cleared the stored session")
}

func TestCLI_LoginFailureIsReported(t *testing.T) {
	c, _ := newCLI(t)

	_, stderr, err := c.run("", "login", "-u", "alice", "-p", "wrong")
	assert.ErrorIs(t, err, errLoginFailed)
	assert.Contains(t, stderr, "No active account found with the given credentials")
	assert.Contains(t, stderr, "(401)")
}

func TestCLI_Logout(t *testing.T) {
	c, _ := newCLI(t)

	_, _, err := c.run("", "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	out, _, err := c.run("", "logout")
	require.NoError(t, err)
	assert.Equal(t, "signed out\n", out)

	out, _, err = c.run("", "logout")
	require.NoError(t, err, "logout is idempotent")
	assert.Equal(t, "signed out\n", out)
}

func TestCLI_GetMetrics(t *testing.T) {
	c, _ := newCLI(t)
	_, _, err := c.run("", "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	_, stderr, err := c.run("", "get", "/api/v1/products/", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, `stockly_api_requests_total{code="200",method="GET"} 1`)
}

func TestCLI_InvalidConfig(t *testing.T) {
	c, _ := newCLI(t)
	c.apiBase = "ftp://nope"

	_, _, err := c.run("", "whoami")
	assert.Error(t, err)
}

func TestCLI_Status(t *testing.T) {
	c, _ := newCLI(t)

	out, _, err := c.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "file ("+c.storePath+")")
	assert.Contains(t, out, "@stockly/access_token @stockly/refresh_token @stockly/user_info")
	assert.Regexp(t, `session\s+anonymous`, out)

	_, _, err = c.run("", "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	out, _, err = c.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Alice Doe (id 42)")
	assert.NotContains(t, out, "redis")
}

func TestCLI_StatusRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("STOCKLY_REDIS_URL", "redis://"+mr.Addr()+"/0")

	c, _ := newCLI(t)
	c.store = "redis"

	_, _, err := c.run("", "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	assert.True(t, mr.Exists("@stockly/access_token"))

	out, _, err := c.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "redis ("+mr.Addr()+")")
	assert.Regexp(t, `redis\s+ok`, out)
	assert.Contains(t, out, "signed in as Alice Doe (id 42)")
}

func TestCLI_StatusMemory(t *testing.T) {
	c, _ := newCLI(t)
	c.store = "memory"

	out, _, err := c.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "memory (0 entries)")
}

func TestCLI_ClosesAppWhenCommandFails(t *testing.T) {
	c, _ := newCLI(t)

	cmd, ref := c.command("", "login", "-u", "alice", "-p", "wrong")
	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, errLoginFailed)
	require.NotNil(t, ref.app)
	assert.Equal(t, 1, ref.app.bus.Len(), "still open until the ref is closed")

	require.NoError(t, ref.Close())
	assert.Empty(t, ref.app.closers)
	assert.Equal(t, 0, ref.app.bus.Len())

	states := ref.app.manager.Watch(context.Background())
	<-states
	_, open := <-states
	assert.False(t, open, "manager is closed")

	require.NoError(t, ref.Close(), "closing twice is harmless")
}

func TestCLI_Version(t *testing.T) {
	cmd, ref := rootCmd()
	t.Cleanup(func() { _ = ref.Close() })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "stockly version "+Version)
}
