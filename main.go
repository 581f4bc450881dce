package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docintel/models"
	"docintel/pkg/intelligence"
	"docintel/pkg/ocrengine"
	"docintel/pkg/preprocess"
	"docintel/process/watcher"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// engine is the document intelligence pipeline, shared by the upload
// handler and the background watcher.
var engine *intelligence.Engine

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./docintel migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()
	engine = newEngineFromEnv()

	r := gin.Default()

	// Register CORS middleware early so all routes covered
	r.Use(corsMiddleware())

	setupRoutes(r)

	// Start the document watcher in background so `go run .` also watches
	// public/docs for new uploads dropped outside the HTTP API.
	go startWatcher()

	r.Run(":8081")
}

// newEngineFromEnv builds the intelligence engine, recognizing the
// environment variables documented for the core package: DOCINTEL_LANG,
// DOCINTEL_CONFIDENCE_THRESHOLD, DOCINTEL_ENABLE_LEARNING,
// DOCINTEL_MEMORY_PATH, DOCINTEL_MAX_MEMORY_ENTRIES.
func newEngineFromEnv() *intelligence.Engine {
	cfg := intelligence.DefaultConfig()
	if v := os.Getenv("DOCINTEL_LANG"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("DOCINTEL_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("DOCINTEL_ENABLE_LEARNING"); v != "" {
		cfg.EnableLearning = strings.ToLower(v) != "false" && v != "0"
	}
	if v := os.Getenv("DOCINTEL_MEMORY_PATH"); v != "" {
		cfg.MemoryStoragePath = v
	}
	if v := os.Getenv("DOCINTEL_MAX_MEMORY_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxMemoryEntries = n
		}
	}
	return intelligence.NewEngine(cfg, preprocess.NewProcessor(), ocrengine.NewEngine())
}

// startWatcher runs the in-process document watcher against public/docs,
// owned by the seeded admin profile. It replaces the original subprocess
// spawn (`go run process/process_keu.go -watch`) with a goroutine sharing
// this process's DB handle and intelligence engine.
func startWatcher() {
	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		log.Printf("watcher: admin user not found, not starting: %v", err)
		return
	}
	var profile models.Profile
	if err := db.Where("user_id = ?", admin.ID).First(&profile).Error; err != nil {
		log.Printf("watcher: admin profile not found, not starting: %v", err)
		return
	}
	dir := os.Getenv("DOCINTEL_WATCH_DIR")
	if dir == "" {
		dir = filepath.Join("public", "docs")
	}
	watcher.New(db, engine, dir, profile, 0).Run()
}

// corsMiddleware allows cross-origin requests from configured origins (comma separated in ALLOWED_ORIGINS).
// If ALLOWED_ORIGINS is empty, it falls back to common local dev ports.
// Example .env: ALLOWED_ORIGINS=http://localhost:3000,http://localhost:3001
func corsMiddleware() gin.HandlerFunc {
	// Read and parse allowed origins once (hot-reload not required for dev convenience)
	raw := os.Getenv("ALLOWED_ORIGINS")
	if strings.TrimSpace(raw) == "" {
		// include Vite default 5173 plus common React ports
		raw = "http://localhost:5173,http://localhost:3000,http://localhost:3001,http://localhost:3002,http://localhost:3003"
	}
	parts := strings.Split(raw, ",")
	allowed := make(map[string]struct{}, len(parts))
	cleanedList := make([]string, 0, len(parts))
	for _, p := range parts {
		o := strings.TrimSpace(p)
		if o == "" {
			continue
		}
		allowed[o] = struct{}{}
		cleanedList = append(cleanedList, o)
	}
	allowMethods := "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	allowHeaders := "Authorization,Content-Type,Accept,Origin,X-Requested-With"
	maxAge := fmt.Sprintf("%d", int((12*time.Hour)/time.Second))
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", allowMethods)
				c.Header("Access-Control-Allow-Headers", allowHeaders)
				c.Header("Access-Control-Max-Age", maxAge)
			}
		}
		// Handle preflight quickly
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
