package models

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Queries are written with ? placeholders and passed through Rebind so the
// same statements run on both SQLite and PostgreSQL.

func CreateUser(db *sqlx.DB, accountName, passhash string) (int64, error) {
	var id int64
	q := db.Rebind(`INSERT INTO users (account_name, passhash) VALUES (?, ?) RETURNING id`)
	if err := db.Get(&id, q, accountName, passhash); err != nil {
		return 0, err
	}
	return id, nil
}

// AccountTaken is the registration pre-check. It is not race-free: two
// concurrent registrations of the same name can both pass, matching the
// reference behavior.
func AccountTaken(db *sqlx.DB, accountName string) (bool, error) {
	var one int
	q := db.Rebind(`SELECT 1 FROM users WHERE account_name = ?`)
	err := db.Get(&one, q, accountName)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetUser(db *sqlx.DB, id int64) (*User, error) {
	var u User
	q := db.Rebind(`SELECT * FROM users WHERE id = ?`)
	if err := db.Get(&u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveUserByName fetches a non-banned user by account name.
func GetActiveUserByName(db *sqlx.DB, accountName string) (*User, error) {
	var u User
	q := db.Rebind(`SELECT * FROM users WHERE account_name = ? AND del_flg = 0`)
	if err := db.Get(&u, q, accountName); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListPosts returns every post, newest first, without image bytes.
func ListPosts(db *sqlx.DB) ([]Post, error) {
	var posts []Post
	err := db.Select(&posts, `SELECT id, user_id, body, mime, created_at FROM posts ORDER BY created_at DESC`)
	return posts, err
}

// ListPostsBefore returns posts with created_at at or before the cursor,
// newest first, without image bytes.
func ListPostsBefore(db *sqlx.DB, maxCreatedAt time.Time) ([]Post, error) {
	var posts []Post
	q := db.Rebind(`SELECT id, user_id, body, mime, created_at FROM posts WHERE created_at <= ? ORDER BY created_at DESC`)
	err := db.Select(&posts, q, maxCreatedAt)
	return posts, err
}

func ListPostsByUser(db *sqlx.DB, userID int64) ([]Post, error) {
	var posts []Post
	q := db.Rebind(`SELECT id, user_id, body, mime, created_at FROM posts WHERE user_id = ? ORDER BY created_at DESC`)
	err := db.Select(&posts, q, userID)
	return posts, err
}

// GetPost fetches a single post including its image bytes.
func GetPost(db *sqlx.DB, id int64) (*Post, error) {
	var p Post
	q := db.Rebind(`SELECT * FROM posts WHERE id = ?`)
	if err := db.Get(&p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func CreatePost(db *sqlx.DB, userID int64, mime string, imgdata []byte, body string) (int64, error) {
	var id int64
	q := db.Rebind(`INSERT INTO posts (user_id, mime, imgdata, body) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := db.Get(&id, q, userID, mime, imgdata, body); err != nil {
		return 0, err
	}
	return id, nil
}

func CountPostsByUser(db *sqlx.DB, userID int64) (int, error) {
	var n int
	q := db.Rebind(`SELECT COUNT(*) FROM posts WHERE user_id = ?`)
	err := db.Get(&n, q, userID)
	return n, err
}

func ListPostIDsByUser(db *sqlx.DB, userID int64) ([]int64, error) {
	var ids []int64
	q := db.Rebind(`SELECT id FROM posts WHERE user_id = ?`)
	err := db.Select(&ids, q, userID)
	return ids, err
}

func CreateComment(db *sqlx.DB, postID, userID int64, comment string) error {
	q := db.Rebind(`INSERT INTO comments (post_id, user_id, comment) VALUES (?, ?, ?)`)
	_, err := db.Exec(q, postID, userID, comment)
	return err
}

func CountComments(db *sqlx.DB, postID int64) (int, error) {
	var n int
	q := db.Rebind(`SELECT COUNT(*) FROM comments WHERE post_id = ?`)
	err := db.Get(&n, q, postID)
	return n, err
}

// ListComments returns comments on a post, newest first. A limit of 0 means
// no limit.
func ListComments(db *sqlx.DB, postID int64, limit int) ([]Comment, error) {
	var comments []Comment
	q := `SELECT * FROM comments WHERE post_id = ? ORDER BY created_at DESC`
	args := []any{postID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	err := db.Select(&comments, db.Rebind(q), args...)
	return comments, err
}

func CountCommentsByUser(db *sqlx.DB, userID int64) (int, error) {
	var n int
	q := db.Rebind(`SELECT COUNT(*) FROM comments WHERE user_id = ?`)
	err := db.Get(&n, q, userID)
	return n, err
}

// CountCommentsOnPosts counts comments across a set of posts.
func CountCommentsOnPosts(db *sqlx.DB, postIDs []int64) (int, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`SELECT COUNT(*) FROM comments WHERE post_id IN (?)`, postIDs)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.Get(&n, db.Rebind(q), args...)
	return n, err
}

// ListBanCandidates returns normal-authority users not yet banned, newest
// first, for the admin ban page.
func ListBanCandidates(db *sqlx.DB) ([]User, error) {
	var users []User
	err := db.Select(&users, `SELECT * FROM users WHERE authority = 0 AND del_flg = 0 ORDER BY created_at DESC`)
	return users, err
}

func BanUser(db *sqlx.DB, id int64) error {
	q := db.Rebind(`UPDATE users SET del_flg = 1 WHERE id = ?`)
	_, err := db.Exec(q, id)
	return err
}

func CreateSession(db *sqlx.DB, s *Session) error {
	q := db.Rebind(`INSERT INTO sessions (id, user_id, csrf_token, flash, expires_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := db.Exec(q, s.ID, s.UserID, s.CSRFToken, s.Flash, s.ExpiresAt)
	return err
}

func GetSession(db *sqlx.DB, id string) (*Session, error) {
	var s Session
	q := db.Rebind(`SELECT * FROM sessions WHERE id = ?`)
	if err := db.Get(&s, q, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func DeleteSession(db *sqlx.DB, id string) error {
	q := db.Rebind(`DELETE FROM sessions WHERE id = ?`)
	_, err := db.Exec(q, id)
	return err
}

func SetSessionFlash(db *sqlx.DB, id, flash string) error {
	q := db.Rebind(`UPDATE sessions SET flash = ? WHERE id = ?`)
	_, err := db.Exec(q, flash, id)
	return err
}

// TakeSessionFlash returns the pending flash message and clears it.
func TakeSessionFlash(db *sqlx.DB, id string) (string, error) {
	var flash string
	q := db.Rebind(`SELECT flash FROM sessions WHERE id = ?`)
	if err := db.Get(&flash, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if flash != "" {
		if err := SetSessionFlash(db, id, ""); err != nil {
			return "", err
		}
	}
	return flash, nil
}
