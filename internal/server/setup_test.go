package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"giftledger/internal/events"
	"giftledger/internal/logger"
	"giftledger/internal/middleware"
	"giftledger/internal/models"
	"giftledger/internal/services"
	"giftledger/internal/testutil"
	"giftledger/internal/validator"
)

const internalKey = "sweeper-key"

var jwtSecret = []byte("flow-test-secret")

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Services Services
	Token    string
	User     *models.User
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func testSettings() services.AccountSettings {
	lo, hi := decimal.NewFromInt(5), decimal.NewFromInt(500)
	return services.AccountSettings{
		BankName:        "Bank",
		RedemptionsName: "Redemptions",
		ExpiredName:     "Expired",
		MinInitialValue: &lo,
		MaxInitialValue: &hi,
	}
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database, with the designated accounts and one signed-in user.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	svc := NewServices(db, testSettings(), events.NopPublisher{})
	if err := svc.Accounts.EnsureCoreAccounts(context.Background()); err != nil {
		t.Fatalf("failed to create core accounts: %v", err)
	}

	app := &testApp{
		DB:       db,
		Services: svc,
		Router:   NewRouter(svc, Options{JWTSecret: jwtSecret, InternalAPIKey: internalKey}),
	}
	app.User, app.Token = app.signIn(t, "cashier")
	return app
}

// signIn creates a user and returns a token for it.
func (app *testApp) signIn(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user, err := app.Services.Users.CreateUser(context.Background(), username, username+"@example.com")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	token, err := middleware.GenerateAccessToken(jwtSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return user, token
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// internal calls an operational endpoint with the sweeper key.
func (app *testApp) internal(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", internalKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// createCard creates an account through the public API and returns its URL.
func (app *testApp) createCard(t *testing.T, amount string) string {
	t.Helper()
	now := time.Now().UTC()
	body := fmt.Sprintf(`{"start_date":%q,"end_date":%q,"amount":%q}`,
		now.AddDate(0, 0, -1).Format(time.RFC3339), now.AddDate(1, 0, 0).Format(time.RFC3339), amount)
	rec := app.request("POST", "/api/v1/accounts", body, app.Token)
	if rec.Code != 201 {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	return rec.Header().Get("Location")
}

func (app *testApp) balance(t *testing.T, accountURL string) string {
	t.Helper()
	rec := app.request("GET", accountURL, "", app.Token)
	if rec.Code != 200 {
		t.Fatalf("get account failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["balance"].(string)
}
