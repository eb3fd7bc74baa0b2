package cmd

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/prcommenter/internal/apperr"
	"github.com/danielolaszy/prcommenter/internal/config"
	"github.com/danielolaszy/prcommenter/internal/relay"
	"github.com/danielolaszy/prcommenter/internal/session"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestAwaitCallbackWaitsForRedirect(t *testing.T) {
	srv := fakeRelay(t)
	store := session.NewMemoryStore("")
	m := session.NewManager(store, relay.NewClient(srv.URL, nil), "Iv1.test", config.GitHubConfig{}.OAuthEndpoint())

	type result struct {
		stored bool
		err    error
	}
	addr := freeAddr(t)
	done := make(chan result, 1)
	go func() {
		stored, err := awaitCallback(context.Background(), addr, m)
		done <- result{stored, err}
	}()

	base := "http://" + addr
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(base + "/favicon.ico")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case res := <-done:
		t.Fatalf("login ended before the redirect: stored=%v err=%v", res.stored, res.err)
	default:
	}

	resp, err = http.Get(base + "/?code=good")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.stored)
	case <-time.After(5 * time.Second):
		t.Fatal("login did not finish after the redirect")
	}

	token, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "gho_cli", token)
}

func TestAwaitCallbackProviderDenied(t *testing.T) {
	srv := fakeRelay(t)
	store := session.NewMemoryStore("")
	m := session.NewManager(store, relay.NewClient(srv.URL, nil), "Iv1.test", config.GitHubConfig{}.OAuthEndpoint())

	addr := freeAddr(t)
	errc := make(chan error, 1)
	go func() {
		_, err := awaitCallback(context.Background(), addr, m)
		errc <- err
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get("http://" + addr + "/?error=access_denied")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	select {
	case err := <-errc:
		ue, ok := apperr.AsUpstream(err)
		require.True(t, ok)
		assert.Equal(t, "access_denied", ue.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("login did not finish after the error redirect")
	}
}
