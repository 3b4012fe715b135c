package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/watchroom/internal/model"
)

func TestInMemoryRateLimiter_PerKey(t *testing.T) {
	limiter := PerMinute(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "a"); !ok {
			t.Fatalf("Expected request %d to be allowed", i)
		}
	}
	if ok, _ := limiter.Allow(ctx, "a"); ok {
		t.Error("Expected third request to be limited")
	}
	if ok, _ := limiter.Allow(ctx, "b"); !ok {
		t.Error("Expected other key to have its own bucket")
	}
}

func TestInMemoryRateLimiter_Concurrent(t *testing.T) {
	limiter := PerMinute(50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(context.Background(), "shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("Expected 50 allowed, got %d", allowed)
	}
}

func TestMessageRateLimit(t *testing.T) {
	jwtManager := createTestJWTManager()
	router := setupTestRouter()
	router.POST("/messages", Auth(jwtManager), MessageRateLimit(PerMinute(1)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	token, _, _ := jwtManager.Issue(model.Identity{UserID: "user-1"}, time.Hour)
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/messages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusCreated {
		t.Fatalf("Expected first message to pass, got %d", w.Code)
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	router := setupTestRouter()
	router.GET("/test", RateLimitWithConfig(failingLimiter{}, &RateLimitConfig{
		Window:  time.Minute,
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected limiter errors to let requests through, got %d", w.Code)
	}
}

func TestMessageKey(t *testing.T) {
	if got := MessageKey("u1"); got != "ratelimit:message:u1" {
		t.Errorf("Expected ratelimit:message:u1, got %s", got)
	}
}
