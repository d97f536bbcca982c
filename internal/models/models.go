package models

import (
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID          int64     `db:"id"`
	AccountName string    `db:"account_name"`
	Passhash    string    `db:"passhash"`
	Authority   int       `db:"authority"`
	DelFlg      int       `db:"del_flg"`
	CreatedAt   time.Time `db:"created_at"`
}

// Banned reports whether the user is hidden from the site (del_flg set).
func (u User) Banned() bool { return u.DelFlg != 0 }

// Admin reports whether the user may access /admin routes.
func (u User) Admin() bool { return u.Authority != 0 }

type Post struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Mime      string    `db:"mime"`
	Imgdata   []byte    `db:"imgdata"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

type Comment struct {
	ID        int64     `db:"id"`
	PostID    int64     `db:"post_id"`
	UserID    int64     `db:"user_id"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

// Session is the server-side session row behind the cookie: the logged-in
// user (if any), the per-session CSRF token, and a pending flash message.
type Session struct {
	ID        string        `db:"id"`
	UserID    sql.NullInt64 `db:"user_id"`
	CSRFToken string        `db:"csrf_token"`
	Flash     string        `db:"flash"`
	CreatedAt time.Time     `db:"created_at"`
	ExpiresAt time.Time     `db:"expires_at"`
}

// CommentView is a comment joined with its author for display.
type CommentView struct {
	Comment
	User User
}

// PostView is a post enriched for display: author, total comment count and
// the comment window selected by the feed assembler.
type PostView struct {
	Post
	User         User
	CommentCount int
	Comments     []CommentView
}

// ImageURL is the canonical image path for the post, with the extension
// derived from the stored mime type.
func (p PostView) ImageURL() string {
	ext := ""
	switch p.Mime {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	}
	return fmt.Sprintf("/image/%d%s", p.Post.ID, ext)
}
