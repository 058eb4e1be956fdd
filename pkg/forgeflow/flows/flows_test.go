package flows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/apikeys"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/auth"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/projects"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/runs"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

// setupTestRouter wires projects, flows and runs behind combined auth, the
// same shape the server composes in main.
func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api")
	api.Use(apikeys.CombinedAuthMiddleware(db))
	projects.NewHandler(db).RegisterRoutes(api)
	NewHandler(db).RegisterRoutes(api)
	runs.NewHandler(db).RegisterRoutes(api)

	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, PasswordHash: "unused"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestAPIKey(t *testing.T, db *gorm.DB, userID uint, expiresAt *time.Time) string {
	secret, err := apikeys.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	hash, err := apikeys.HashKey(secret)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	key := models.APIKey{
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: secret[:apikeys.KeyPrefixLength],
		Name:      "test key",
		ExpiresAt: expiresAt,
	}
	if err := db.Create(&key).Error; err != nil {
		t.Fatalf("Failed to create API key: %v", err)
	}
	return secret
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email)
	return "Bearer " + token
}

func doJSON(t *testing.T, router *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	project := models.Project{OwnerID: user.ID, Name: "P1"}
	db.Create(&project)

	body := CreateFlowRequest{ProjectID: project.ID, Name: "F1", Description: "first flow"}
	resp := doJSON(t, router, "POST", "/api/flows", getAuthHeader(user), body)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response FlowResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Name != "F1" {
		t.Errorf("Expected name 'F1', got '%s'", response.Name)
	}
	if response.ProjectID != project.ID {
		t.Errorf("Expected project_id %d, got %d", project.ID, response.ProjectID)
	}
}

func TestCreateFlowInForeignProject(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	project := models.Project{OwnerID: owner.ID, Name: "Private"}
	db.Create(&project)

	body := CreateFlowRequest{ProjectID: project.ID, Name: "Sneaky"}
	resp := doJSON(t, router, "POST", "/api/flows", getAuthHeader(other), body)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestGetForeignFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	project := models.Project{OwnerID: owner.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "F"}
	db.Create(&flow)

	resp := doJSON(t, router, "GET", fmt.Sprintf("/api/flows/%d", flow.ID), getAuthHeader(other), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestUpdateFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	project := models.Project{OwnerID: user.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "Old", Description: "old desc"}
	db.Create(&flow)

	desc := "new desc"
	body := UpdateFlowRequest{Name: "New", Description: &desc}
	resp := doJSON(t, router, "PATCH", fmt.Sprintf("/api/flows/%d", flow.ID), getAuthHeader(user), body)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var stored models.Flow
	db.First(&stored, flow.ID)
	if stored.Name != "New" || stored.Description != "new desc" {
		t.Errorf("Expected updated flow, got name=%s description=%s", stored.Name, stored.Description)
	}
}

func TestDeleteFlowCascadesRuns(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	project := models.Project{OwnerID: user.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "F"}
	db.Create(&flow)
	run := models.FlowRun{FlowID: flow.ID, Status: models.RunStatusPending}
	db.Create(&run)

	resp := doJSON(t, router, "DELETE", fmt.Sprintf("/api/flows/%d", flow.ID), getAuthHeader(user), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var runCount int64
	db.Model(&models.FlowRun{}).Where("flow_id = ?", flow.ID).Count(&runCount)
	if runCount != 0 {
		t.Error("Expected runs to be deleted with the flow")
	}
}

func TestRunFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	project := models.Project{OwnerID: user.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "F"}
	db.Create(&flow)

	resp := doJSON(t, router, "POST", fmt.Sprintf("/api/flows/%d/run", flow.ID), getAuthHeader(user), nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response runs.RunResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Status != "pending" {
		t.Errorf("Expected status pending, got %s", response.Status)
	}
	if response.StartedAt != nil || response.CompletedAt != nil {
		t.Error("Expected started_at and completed_at to be null")
	}
}

func TestRunForeignFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	project := models.Project{OwnerID: owner.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "F"}
	db.Create(&flow)

	resp := doJSON(t, router, "POST", fmt.Sprintf("/api/flows/%d/run", flow.ID), getAuthHeader(other), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

// TestEndToEndWithAPIKey walks the whole chain on API key auth: issue a key,
// create a project and a flow with it, trigger two runs, and check both run
// records come back pending and distinct.
func TestEndToEndWithAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "u1@example.com")
	secret := createTestAPIKey(t, db, user.ID, nil)
	bearer := "Bearer " + secret

	// Create project
	resp := doJSON(t, router, "POST", "/api/projects", bearer, projects.CreateProjectRequest{Name: "P1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Create project: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var project projects.ProjectResponse
	json.Unmarshal(resp.Body.Bytes(), &project)
	if project.OwnerID != user.ID {
		t.Fatalf("Project owner = %d, want %d", project.OwnerID, user.ID)
	}

	// Create flow
	resp = doJSON(t, router, "POST", "/api/flows", bearer, CreateFlowRequest{ProjectID: project.ID, Name: "F1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Create flow: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var flow FlowResponse
	json.Unmarshal(resp.Body.Bytes(), &flow)

	// First run
	resp = doJSON(t, router, "POST", fmt.Sprintf("/api/flows/%d/run", flow.ID), bearer, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("First run: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var run1 runs.RunResponse
	json.Unmarshal(resp.Body.Bytes(), &run1)
	if run1.Status != "pending" || run1.StartedAt != nil {
		t.Errorf("First run: expected pending with null started_at, got %+v", run1)
	}

	// Second run is a distinct record
	resp = doJSON(t, router, "POST", fmt.Sprintf("/api/flows/%d/run", flow.ID), bearer, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Second run: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var run2 runs.RunResponse
	json.Unmarshal(resp.Body.Bytes(), &run2)
	if run2.ID == run1.ID {
		t.Error("Repeated run calls must create distinct runs")
	}
}

// TestExpiredAPIKeyRejected covers the expiry scenario end to end: a key
// that expired a second ago is rejected outright.
func TestExpiredAPIKeyRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "u1@example.com")

	expiry := time.Now().UTC().Add(-time.Second)
	secret := createTestAPIKey(t, db, user.ID, &expiry)

	resp := doJSON(t, router, "GET", "/api/projects", "Bearer "+secret, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired key, got %d", resp.Code)
	}
}

func TestGetFlowStoreDown(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	project := models.Project{OwnerID: user.ID, Name: "P"}
	db.Create(&project)
	flow := models.Flow{ProjectID: project.ID, Name: "F"}
	db.Create(&flow)

	// A failing store must surface as 503, never as the uniform 404.
	sqlDB, _ := db.DB()
	sqlDB.Close()

	resp := doJSON(t, router, "GET", fmt.Sprintf("/api/flows/%d", flow.ID), getAuthHeader(user), nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d: %s", resp.Code, resp.Body.String())
	}
}
