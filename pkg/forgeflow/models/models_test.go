package models

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	// Verify tables exist by checking if we can query them
	tables := []string{"users", "api_keys", "projects", "flows", "flow_runs"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestUserModel(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{
		Email:        "test@example.com",
		PasswordHash: "hashed_password",
	}

	result := db.Create(&user)
	if result.Error != nil {
		t.Fatalf("Failed to create user: %v", result.Error)
	}

	if user.ID == 0 {
		t.Error("Expected user ID to be set after create")
	}

	// Test unique email constraint
	user2 := User{
		Email:        "test@example.com",
		PasswordHash: "another_hash",
	}
	result = db.Create(&user2)
	if result.Error == nil {
		t.Error("Expected error when creating user with duplicate email")
	}
}

func TestAPIKeyHashUniqueness(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "test@example.com", PasswordHash: "hash"}
	db.Create(&user)

	key1 := APIKey{UserID: user.ID, KeyHash: "samehash", KeyPrefix: "abcd1234", Name: "first"}
	if err := db.Create(&key1).Error; err != nil {
		t.Fatalf("Failed to create API key: %v", err)
	}

	key2 := APIKey{UserID: user.ID, KeyHash: "samehash", KeyPrefix: "efgh5678", Name: "second"}
	if err := db.Create(&key2).Error; err == nil {
		t.Error("Expected error when creating API key with duplicate hash")
	}
}

func TestAPIKeyExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	key := APIKey{}
	if key.Expired(now) {
		t.Error("Key without expiry should never be expired")
	}

	key.ExpiresAt = &future
	if key.Expired(now) {
		t.Error("Key expiring in the future should not be expired")
	}

	key.ExpiresAt = &past
	if !key.Expired(now) {
		t.Error("Key with expiry in the past should be expired")
	}
}

func TestOwnershipChain(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "owner@example.com", PasswordHash: "hash"}
	db.Create(&user)

	project := Project{OwnerID: user.ID, Name: "P1"}
	db.Create(&project)

	flow := Flow{ProjectID: project.ID, Name: "F1", Description: "first flow"}
	db.Create(&flow)

	run := FlowRun{FlowID: flow.ID, Status: RunStatusPending}
	if err := db.Create(&run).Error; err != nil {
		t.Fatalf("Failed to create flow run: %v", err)
	}

	var loadedProject Project
	db.Preload("Flows.Runs").First(&loadedProject, project.ID)
	if len(loadedProject.Flows) != 1 {
		t.Fatalf("Expected 1 flow, got %d", len(loadedProject.Flows))
	}
	if len(loadedProject.Flows[0].Runs) != 1 {
		t.Errorf("Expected 1 run, got %d", len(loadedProject.Flows[0].Runs))
	}
}

func TestRunStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RunStatus
		legal    bool
	}{
		{RunStatusPending, RunStatusRunning, true},
		{RunStatusRunning, RunStatusCompleted, true},
		{RunStatusRunning, RunStatusFailed, true},
		{RunStatusRunning, RunStatusCancelled, true},
		{RunStatusPending, RunStatusCompleted, false},
		{RunStatusPending, RunStatusCancelled, false},
		{RunStatusCompleted, RunStatusRunning, false},
		{RunStatusFailed, RunStatusRunning, false},
		{RunStatusCancelled, RunStatusPending, false},
		{RunStatusRunning, RunStatusPending, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.legal {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.legal)
		}
	}
}

func TestRunStatusIsTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusPending, RunStatusRunning} {
		if s.IsTerminal() {
			t.Errorf("Expected %s to not be terminal", s)
		}
	}
}
