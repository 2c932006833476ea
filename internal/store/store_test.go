package store

import (
	"context"
	"os"
	"testing"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("RELAY_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testClient, err = NewClient(connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := testClient.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	testClient.Close()
	os.Exit(code)
}

func requireTestDB(t *testing.T) *Client {
	t.Helper()
	if testClient == nil {
		t.Skip("test database not configured, set RELAY_TEST_DB to run")
	}
	return testClient
}
