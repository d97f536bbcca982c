package server

import (
	"github.com/jmoiron/sqlx"

	"photolog/internal/models"
)

const (
	postsPerPage    = 20
	commentsPerPost = 3
)

// makePosts enriches raw post rows, in input order, into display-ready
// views: total comment count, the comment window (the 3 most recent unless
// allComments, presented oldest-first), comment authors, and the post
// author. Posts by banned authors are dropped without counting toward the
// page. Scanning stops as soon as postsPerPage qualifying posts have been
// collected, so trailing input rows may never be examined.
func makePosts(db *sqlx.DB, results []models.Post, allComments bool) ([]models.PostView, error) {
	posts := make([]models.PostView, 0, postsPerPage)
	for i := range results {
		p := models.PostView{Post: results[i]}

		count, err := models.CountComments(db, p.Post.ID)
		if err != nil {
			return nil, err
		}
		p.CommentCount = count

		limit := commentsPerPost
		if allComments {
			limit = 0
		}
		comments, err := models.ListComments(db, p.Post.ID, limit)
		if err != nil {
			return nil, err
		}
		views := make([]models.CommentView, len(comments))
		for j, c := range comments {
			u, err := models.GetUser(db, c.UserID)
			if err != nil {
				return nil, err
			}
			views[j] = models.CommentView{Comment: c, User: *u}
		}
		// fetched newest-first; the window reads oldest-first
		for a, b := 0, len(views)-1; a < b; a, b = a+1, b-1 {
			views[a], views[b] = views[b], views[a]
		}
		p.Comments = views

		author, err := models.GetUser(db, p.Post.UserID)
		if err != nil {
			return nil, err
		}
		p.User = *author

		if !p.User.Banned() {
			posts = append(posts, p)
		}
		if len(posts) >= postsPerPage {
			break
		}
	}
	return posts, nil
}
