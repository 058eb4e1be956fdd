package database

import (
	"testing"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(":memory:")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := Ping(db); err != nil {
		t.Errorf("Ping failed on fresh connection: %v", err)
	}
}
