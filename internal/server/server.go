package server

import (
	"database/sql"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"photolog/internal/auth"
	"photolog/internal/models"
)

const sessionTTL = 24 * time.Hour

type Server struct {
	DB         *sqlx.DB
	tmpl       map[string]*template.Template
	handler    http.Handler
	CookieName string
}

func New(db *sqlx.DB, templateDir string) (*Server, error) {
	templates := map[string]*template.Template{}
	layout := filepath.Join(templateDir, "layout.html")
	pages, err := filepath.Glob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		if filepath.Base(page) == "layout.html" {
			continue
		}
		t, err := template.ParseFiles(layout, page)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(page), ".html")
		templates[name] = t
	}
	s := &Server{DB: db, tmpl: templates, CookieName: "session_id"}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/initialize", s.handleInitialize)
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)
	r.Get("/register", s.handleRegisterForm)
	r.Post("/register", s.handleRegister)
	r.Get("/logout", s.handleLogout)
	r.Get("/", s.handleIndex)
	r.Post("/", s.handleUpload)
	r.Get("/posts", s.handlePosts)
	r.Get("/posts/{postID}", s.handlePostDetail)
	r.Get("/image/{imageID}.{ext}", s.handleImage)
	r.Post("/comment", s.handleComment)
	r.Get("/admin/banned", s.handleBannedForm)
	r.Post("/admin/banned", s.handleBan)
	r.Get("/@{accountName}", s.handleProfile)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	t, ok := s.tmpl[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("render %s: %v", name, err)
	}
}

// serverError is the single mapping point for unexpected failures, database
// errors included.
func (s *Server) serverError(w http.ResponseWriter, err error) {
	log.Printf("server error: %v", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// session returns the live session for the request cookie, or nil.
func (s *Server) session(r *http.Request) *models.Session {
	cookie, err := r.Cookie(s.CookieName)
	if err != nil {
		return nil
	}
	sess, err := models.GetSession(s.DB, cookie.Value)
	if err != nil || sess.ExpiresAt.Before(time.Now()) {
		return nil
	}
	return sess
}

func (s *Server) newSession(w http.ResponseWriter, userID sql.NullInt64) (*models.Session, error) {
	token, err := auth.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CSRFToken: token,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if err := models.CreateSession(s.DB, sess); err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
	})
	return sess, nil
}

// loginSession replaces any existing session with a fresh one bound to the
// user, rotating the CSRF token.
func (s *Server) loginSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	if old := s.session(r); old != nil {
		if err := models.DeleteSession(s.DB, old.ID); err != nil {
			return err
		}
	}
	_, err := s.newSession(w, sql.NullInt64{Int64: userID, Valid: true})
	return err
}

// currentUser resolves the session to a user row. Bans do not invalidate an
// established session; banned users simply stop appearing in listings.
func (s *Server) currentUser(r *http.Request) *models.User {
	sess := s.session(r)
	if sess == nil || !sess.UserID.Valid {
		return nil
	}
	u, err := models.GetUser(s.DB, sess.UserID.Int64)
	if err != nil {
		return nil
	}
	return u
}

// flash records a one-shot notice for the next rendered page, creating an
// anonymous session if the visitor has none yet.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	sess := s.session(r)
	if sess == nil {
		var err error
		sess, err = s.newSession(w, sql.NullInt64{})
		if err != nil {
			log.Printf("flash session: %v", err)
			return
		}
	}
	if err := models.SetSessionFlash(s.DB, sess.ID, msg); err != nil {
		log.Printf("set flash: %v", err)
	}
}

func (s *Server) takeFlash(r *http.Request) string {
	sess := s.session(r)
	if sess == nil {
		return ""
	}
	msg, err := models.TakeSessionFlash(s.DB, sess.ID)
	if err != nil {
		log.Printf("take flash: %v", err)
		return ""
	}
	return msg
}

// checkCSRF verifies the submitted token against the session token and
// writes a 422 on mismatch. Callers must return when it reports false.
func (s *Server) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	sess := s.session(r)
	if sess == nil || r.FormValue("csrf_token") != sess.CSRFToken {
		http.Error(w, "csrf token mismatch", http.StatusUnprocessableEntity)
		return false
	}
	return true
}

func (s *Server) csrfToken(r *http.Request) string {
	if sess := s.session(r); sess != nil {
		return sess.CSRFToken
	}
	return ""
}

func notFound(w http.ResponseWriter, err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return true
	}
	return false
}
