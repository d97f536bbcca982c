// Package auth implements credential validation and the salted SHA-512
// password scheme. Digests are lowercase hex with the password framed as
// "<password>:<salt>", salt being the SHA-512 hex digest of the account name.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"errors"
	"regexp"

	"github.com/jmoiron/sqlx"

	"photolog/internal/models"
)

// The patterns are anchored at the start only: any string with a valid
// prefix passes, matching the reference validator.
var (
	accountNameRe = regexp.MustCompile(`^[0-9a-zA-Z]{3,}`)
	passwordRe    = regexp.MustCompile(`^[0-9a-zA-Z_]{6,}`)
)

// ValidateUser checks the shape of registration credentials: account names
// need 3+ alphanumeric characters, passwords 6+ word characters.
func ValidateUser(accountName, password string) bool {
	return accountNameRe.MatchString(accountName) && passwordRe.MatchString(password)
}

func digest(src string) string {
	sum := sha512.Sum512([]byte(src))
	return hex.EncodeToString(sum[:])
}

func CalculateSalt(accountName string) string {
	return digest(accountName)
}

func CalculatePasshash(accountName, password string) string {
	return digest(password + ":" + CalculateSalt(accountName))
}

// TryLogin returns the matching non-banned user, or nil with no error when
// the credentials do not match. Unknown account and wrong password are
// deliberately indistinguishable to the caller.
func TryLogin(db *sqlx.DB, accountName, password string) (*models.User, error) {
	u, err := models.GetActiveUserByName(db, accountName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if CalculatePasshash(u.AccountName, password) != u.Passhash {
		return nil, nil
	}
	return u, nil
}

// NewCSRFToken generates the per-session anti-forgery token: 16 hex
// characters from 8 random bytes.
func NewCSRFToken() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
