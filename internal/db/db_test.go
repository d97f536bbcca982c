package db_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"

	"photolog/internal/config"
	"photolog/internal/db"
	"photolog/internal/models"
)

func TestOpenSQLite(t *testing.T) {
	database, err := db.Open(config.DBConfig{Path: filepath.Join(t.TempDir(), "test.db")}, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()

	// schema is applied on open
	for _, table := range []string{"users", "posts", "comments", "sessions"} {
		var n int
		if err := database.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestReset(t *testing.T) {
	database, err := db.Open(config.DBConfig{Path: filepath.Join(t.TempDir(), "test.db")}, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()

	stmts := []string{
		`INSERT INTO users (id, account_name, passhash, del_flg) VALUES (100, 'seed', 'x', 1)`,
		`INSERT INTO users (id, account_name, passhash) VALUES (2000, 'extra', 'x')`,
		`INSERT INTO posts (id, user_id, mime, imgdata) VALUES (20000, 100, 'image/png', x'01')`,
		`INSERT INTO comments (id, post_id, user_id, comment) VALUES (200000, 1, 100, 'hi')`,
	}
	for _, q := range stmts {
		if _, err := database.Exec(q); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.Reset(database); err != nil {
		t.Fatalf("reset: %v", err)
	}

	counts := map[string]int{"users": 1, "posts": 0, "comments": 0}
	for table, want := range counts {
		var n int
		if err := database.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("%s rows after reset = %d, want %d", table, n, want)
		}
	}
	// user 100 survives the cutoff and is banned again by the id % 50 rule
	var delFlg int
	if err := database.Get(&delFlg, `SELECT del_flg FROM users WHERE id = 100`); err != nil {
		t.Fatal(err)
	}
	if delFlg != 1 {
		t.Fatal("user 100 should be re-banned by the deterministic pattern")
	}
}

// TestPostgresRoundTrip exercises the production driver and migrations
// against a disposable Postgres container. Opt in with
// PHOTOLOG_TEST_DOCKER=1; it needs a local Docker daemon.
func TestPostgresRoundTrip(t *testing.T) {
	if os.Getenv("PHOTOLOG_TEST_DOCKER") == "" {
		t.Skip("set PHOTOLOG_TEST_DOCKER=1 to run the Docker-backed Postgres test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("docker: %v", err)
	}
	resource, err := pool.Run("postgres", "16", []string{
		"POSTGRES_USER=photolog",
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=photolog",
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pool.Purge(resource)

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DBConfig{
		Host:     "localhost",
		Port:     port,
		User:     "photolog",
		Password: "secret",
		Name:     "photolog",
	}

	var database *sqlx.DB
	if err := pool.Retry(func() error {
		var err error
		database, err = db.Open(cfg, "../../migrations")
		return err
	}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer database.Close()

	id, err := models.CreateUser(database, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	postID, err := models.CreatePost(database, id, "image/png", []byte{1, 2, 3}, "caption")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if err := models.CreateComment(database, postID, id, "hi"); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	n, err := models.CountComments(database, postID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("comment count = %d, want 1", n)
	}
	post, err := models.GetPost(database, postID)
	if err != nil {
		t.Fatal(err)
	}
	if string(post.Imgdata) != "\x01\x02\x03" {
		t.Fatal("image bytes do not round-trip through bytea")
	}

	if err := db.Reset(database); err != nil {
		t.Fatalf("reset: %v", err)
	}
}
