package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"photolog/internal/auth"
	"photolog/internal/db"
	"photolog/internal/models"
)

const uploadLimit = 10 * 1024 * 1024 // 10 MiB

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if err := db.Reset(s.DB); err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, "login", map[string]any{"Me": nil, "Flash": s.takeFlash(r)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	user, err := auth.TryLogin(s.DB, r.FormValue("account_name"), r.FormValue("password"))
	if err != nil {
		s.serverError(w, err)
		return
	}
	if user == nil {
		s.flash(w, r, "Wrong account name or password")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err := s.loginSession(w, r, user.ID); err != nil {
		s.serverError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, "register", map[string]any{"Me": nil, "Flash": s.takeFlash(r)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	accountName := r.FormValue("account_name")
	password := r.FormValue("password")
	if !auth.ValidateUser(accountName, password) {
		s.flash(w, r, "Account name must be at least 3 characters and the password at least 6")
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	taken, err := models.AccountTaken(s.DB, accountName)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if taken {
		s.flash(w, r, "That account name is already in use")
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}
	id, err := models.CreateUser(s.DB, accountName, auth.CalculatePasshash(accountName, password))
	if err != nil {
		s.serverError(w, err)
		return
	}
	if err := s.loginSession(w, r, id); err != nil {
		s.serverError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(r); sess != nil {
		if err := models.DeleteSession(s.DB, sess.ID); err != nil {
			s.serverError(w, err)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: s.CookieName, Path: "/", MaxAge: -1})
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, err := models.ListPosts(s.DB)
	if err != nil {
		s.serverError(w, err)
		return
	}
	posts, err := makePosts(s.DB, rows, false)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, "index", map[string]any{
		"Me":        s.currentUser(r),
		"Posts":     posts,
		"CSRFToken": s.csrfToken(r),
		"Flash":     s.takeFlash(r),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := models.GetActiveUserByName(s.DB, chi.URLParam(r, "accountName"))
	if err != nil {
		if notFound(w, err) {
			return
		}
		s.serverError(w, err)
		return
	}
	rows, err := models.ListPostsByUser(s.DB, user.ID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	posts, err := makePosts(s.DB, rows, false)
	if err != nil {
		s.serverError(w, err)
		return
	}
	commentCount, err := models.CountCommentsByUser(s.DB, user.ID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	postIDs, err := models.ListPostIDsByUser(s.DB, user.ID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	commentedCount, err := models.CountCommentsOnPosts(s.DB, postIDs)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, "user", map[string]any{
		"Me":             s.currentUser(r),
		"User":           user,
		"Posts":          posts,
		"PostCount":      len(postIDs),
		"CommentCount":   commentCount,
		"CommentedCount": commentedCount,
		"CSRFToken":      s.csrfToken(r),
		"Flash":          s.takeFlash(r),
	})
}

// parseCursor accepts the max_created_at pagination cursor in RFC 3339 or
// plain "2006-01-02 15:04:05" form. An unparsable cursor is ignored.
func parseCursor(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	var (
		rows []models.Post
		err  error
	)
	if cursor, ok := parseCursor(r.URL.Query().Get("max_created_at")); ok {
		rows, err = models.ListPostsBefore(s.DB, cursor)
	} else {
		rows, err = models.ListPosts(s.DB)
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	posts, err := makePosts(s.DB, rows, false)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, "posts", map[string]any{
		"Me":        s.currentUser(r),
		"Posts":     posts,
		"CSRFToken": s.csrfToken(r),
	})
}

func (s *Server) handlePostDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	post, err := models.GetPost(s.DB, id)
	if err != nil {
		if notFound(w, err) {
			return
		}
		s.serverError(w, err)
		return
	}
	posts, err := makePosts(s.DB, []models.Post{*post}, true)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if len(posts) == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.render(w, "post", map[string]any{
		"Me":        s.currentUser(r),
		"Post":      &posts[0],
		"CSRFToken": s.csrfToken(r),
		"Flash":     s.takeFlash(r),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	me := s.currentUser(r)
	if me == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if !s.checkCSRF(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.flash(w, r, "An image is required")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	switch mime {
	case "image/jpeg", "image/png", "image/gif":
	default:
		s.flash(w, r, "Only jpg, png and gif images can be posted")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	// read one byte past the limit so an exactly-10MiB upload still passes
	imgdata, err := io.ReadAll(io.LimitReader(file, uploadLimit+1))
	if err != nil {
		s.serverError(w, err)
		return
	}
	if len(imgdata) > uploadLimit {
		s.flash(w, r, "The file is too large")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	id, err := models.CreatePost(s.DB, me.ID, mime, imgdata, r.FormValue("body"))
	if err != nil {
		s.serverError(w, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/posts/%d", id), http.StatusFound)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	post, err := models.GetPost(s.DB, id)
	if err != nil {
		if notFound(w, err) {
			return
		}
		s.serverError(w, err)
		return
	}
	ext := chi.URLParam(r, "ext")
	if (ext == "jpg" && post.Mime == "image/jpeg") ||
		(ext == "png" && post.Mime == "image/png") ||
		(ext == "gif" && post.Mime == "image/gif") {
		w.Header().Set("Content-Type", post.Mime)
		w.Write(post.Imgdata)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	me := s.currentUser(r)
	if me == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if !s.checkCSRF(w, r) {
		return
	}
	postID, err := strconv.ParseInt(r.FormValue("post_id"), 10, 64)
	if err != nil || postID < 0 {
		fmt.Fprint(w, "post_id must be an integer")
		return
	}
	if err := models.CreateComment(s.DB, postID, me.ID, r.FormValue("comment")); err != nil {
		s.serverError(w, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/posts/%d", postID), http.StatusFound)
}

func (s *Server) handleBannedForm(w http.ResponseWriter, r *http.Request) {
	me := s.currentUser(r)
	if me == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if !me.Admin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	users, err := models.ListBanCandidates(s.DB)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.render(w, "banned", map[string]any{
		"Me":        me,
		"Users":     users,
		"CSRFToken": s.csrfToken(r),
	})
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	me := s.currentUser(r)
	if me == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if !me.Admin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !s.checkCSRF(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.serverError(w, err)
		return
	}
	for _, v := range r.PostForm["uid"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		if err := models.BanUser(s.DB, id); err != nil {
			s.serverError(w, err)
			return
		}
	}
	http.Redirect(w, r, "/admin/banned", http.StatusFound)
}
