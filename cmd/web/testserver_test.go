package main

import (
	"context"
	"github.com/myrjola/dossier/internal/e2etest"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "DOSSIER_ADDR":
		return "localhost:0", true
	case "DOSSIER_SQLITE_URL":
		return ":memory:", true
	case "DOSSIER_PPROF_ADDR":
		return "", true
	case "DOSSIER_STAGE_PACE":
		return "0", true
	case "DOSSIER_SIMULATED_DELAY":
		return "0s", true
	default:
		return "", false
	}
}

// startTestServer starts the server with lookupEnv and waits for it to be ready. The server stops with the test.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, w, lookupEnv, run)
	require.NoError(t, err)
	return server
}

// withEnv overrides single variables of testLookupEnv.
func withEnv(overrides map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := overrides[key]; ok {
			return v, true
		}
		return testLookupEnv(key)
	}
}
