package clientsync

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/middlewares"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
)

func TestMySQLReconcileAndLockedMigration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := operatorCtx()
	logger := quietLogger()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	redisStore, err := config.ConnectRedisWithRetry(ctx, "127.0.0.1:"+redisPort, logger)
	if err != nil {
		t.Fatalf("ConnectRedisWithRetry: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })

	db, err := config.ConnectDatabaseWithRetry(ctx, "clients", config.DatabaseConfig{
		User:         "root",
		Password:     "testpw",
		Host:         "127.0.0.1",
		Port:         mysqlPort,
		Name:         "clients_test",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, "", logger)
	if err != nil {
		t.Fatalf("ConnectDatabaseWithRetry: %v", err)
	}

	// two replicas starting together
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- Migrate(ctx, db, redisStore, logger) }()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Migrate: %v", err)
		}
	}
	if err := models.MigrateWordPressTables(db, "wp_"); err != nil {
		t.Fatalf("MigrateWordPressTables: %v", err)
	}

	cipher, err := utils.NewFieldCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	stores := NewStores(db, db, "wp_", cipher)
	svc := NewGormService(stores, 5*time.Second, logger, nil)

	client, err := stores.Clients.Create(ctx, &models.NewClient{
		CustomerType:  models.CustomerTypePrivate,
		FirstName:     "Sam",
		LastName:      "Roy",
		Email:         "sam@example.com",
		PhonePrimary:  "506-453-2345",
		Address:       "12 King St",
		City:          "Fredericton",
		PostalCode:    "E3B 1A1",
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := stores.Users.CreateWpUser(ctx, &models.WpUser{ID: 10, UserLogin: "sam", UserEmail: "SAM@example.com"}, map[string]string{
		models.WpMetaFirstName: "Samuel",
		models.WpMetaLastName:  "Roy",
		models.WpMetaPhone:     "506-453-2345",
		models.WpMetaPostcode:  "E3B 1A1",
	}); err != nil {
		t.Fatalf("CreateWpUser: %v", err)
	}

	if err := svc.LinkClientToUser(ctx, client.ID, 10); err != nil {
		t.Fatalf("LinkClientToUser: %v", err)
	}
	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Mismatches) != 2 {
		t.Fatalf("expected first name and email mismatches, got %+v", report.Mismatches)
	}

	result, err := svc.SyncPair(ctx, client.ID, DirectionToWordPress)
	if err != nil {
		t.Fatalf("SyncPair: %v", err)
	}
	if len(result.Fields) != 2 {
		t.Fatalf("expected two pushed fields, got %+v", result.Fields)
	}
	if mismatches, err := svc.GetMismatches(ctx); err != nil || len(mismatches) != 0 {
		t.Fatalf("expected a clean pair, got %+v err=%v", mismatches, err)
	}

	// a stopped database is reported as unavailable, never as a partial report
	if err := dockerRmForce(mysqlName); err != nil {
		t.Fatalf("stop mysql: %v", err)
	}
	if _, err := svc.Reconcile(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisRateLimiter(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := operatorCtx()
	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	redisStore, err := config.ConnectRedisWithRetry(ctx, "127.0.0.1:"+redisPort, quietLogger())
	if err != nil {
		t.Fatalf("ConnectRedisWithRetry: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })

	gin.SetMode(gin.TestMode)
	window := 2 * time.Second
	limiter := middlewares.NewRateLimiter(redisStore.Client(), 3, window)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	ping := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 1; i <= 3; i++ {
		if code := ping(); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := ping(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", code)
	}

	ttl, err := redisStore.Client().TTL(ctx, "RateLimit:192.0.2.1").Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > window {
		t.Fatalf("expected the counter to expire within the window, ttl=%v", ttl)
	}

	time.Sleep(window + 500*time.Millisecond)
	if code := ping(); code != http.StatusNoContent {
		t.Fatalf("expected a fresh window after expiry, got %d", code)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clients-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("clients-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=clients_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

var dockerPortPattern = regexp.MustCompile(`:(\d+)`)

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// "127.0.0.1:49154\n"
	m := dockerPortPattern.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
