package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/core/claims"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var creds Credentials
		if err := web.Decode(w, r, &creds); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding credentials: %w", err))
		}

		if err := validate.Check(creds); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		admin, err := FetchAdminByUsername(ctx, db, creds.Username)
		if err != nil {
			if errors.Is(err, ErrAdminNotFound) {
				return weberr.NotAuthorized(errors.New("invalid username or password"))
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword(admin.PasswordHash, []byte(creds.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("invalid username or password"))
		}

		if err := login(ctx, session, admin); err != nil {
			return err
		}

		return web.Respond(ctx, w, admin, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// login renews the session token against fixation and binds the admin
// identity to it.
func login(ctx context.Context, session *scs.SessionManager, admin AdminUser) error {
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	session.Put(ctx, userKey, admin.ID)
	session.Put(ctx, roleKey, claims.RoleAdmin)
	return nil
}
