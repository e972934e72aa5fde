package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/createproresume/resume-service/api/background"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/core/auth"
	"github.com/createproresume/resume-service/core/claims"
	"github.com/createproresume/resume-service/core/service"
	"github.com/createproresume/resume-service/email"
	"github.com/createproresume/resume-service/upload"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
)

// HandleList returns all orders, newest first, plus the dashboard
// counters. An optional status query narrows the listing.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		status := web.Query(r, "status")
		if status != "" {
			if _, err := ParseStatus(status); err != nil {
				return weberr.BadRequest(err)
			}
		}

		orders, err := FetchAll(ctx, db, status)
		if err != nil {
			return err
		}

		stats, err := FetchStats(ctx, db)
		if err != nil {
			return err
		}

		resp := struct {
			Orders []Order `json:"orders"`
			Stats  Stats   `json:"stats"`
		}{
			Orders: orders,
			Stats:  stats,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleShow returns one order with its full tracking history.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		entries, err := FetchTracking(ctx, db, ord.ID)
		if err != nil {
			return err
		}

		resp := struct {
			Order    Order      `json:"order"`
			Tracking []Tracking `json:"tracking"`
		}{
			Order:    ord,
			Tracking: entries,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// StatusUpdate is the admin transition request.
type StatusUpdate struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// HandleSetStatus moves an order through its lifecycle. Illegal moves
// are rejected with a conflict, same-status updates are acknowledged
// without a write, and every real change notifies the customer.
func HandleSetStatus(db *sqlx.DB, mailer *email.Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var su StatusUpdate
		if err := web.Decode(w, r, &su); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(su); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		to, err := ParseStatus(su.Status)
		if err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		ord, changed, err := setStatus(ctx, db, ord, to, su.Note, actorName(ctx, db))
		if err != nil {
			var terr TransitionError
			if errors.As(err, &terr) {
				return weberr.Conflict(terr)
			}
			return err
		}

		if changed {
			notifyStatus(ctx, db, ord, mailer, bg)
		}
		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleUploadDeliverable attaches a finished document to an order. The
// kind route parameter selects which slot the file fills.
func HandleUploadDeliverable(db *sqlx.DB, store *upload.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		kind := web.Param(r, "kind")
		if kind != "resume" && kind != "cover_letter" {
			return weberr.BadRequest(fmt.Errorf("unknown file kind %q", kind))
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if ord.Status == StatusCancelled {
			return weberr.Conflict(errors.New("cannot attach files to a cancelled order"))
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing upload form: %w", err))
		}

		name, err := saveUpload(r, store, "file", "final-"+kind)
		if err != nil {
			return err
		}
		if name == "" {
			return weberr.BadRequest(errors.New("a file part named 'file' is required"))
		}

		switch kind {
		case "resume":
			ord.CompletedResume = name
		case "cover_letter":
			ord.CompletedCover = name
		}
		ord.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, ord); err != nil {
			return err
		}
		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

// HandleDownloadUpload streams a document the customer attached at
// submission back to the admin working on the order.
func HandleDownloadUpload(db *sqlx.DB, store *upload.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		var name string
		switch kind := web.Param(r, "kind"); kind {
		case "resume":
			name = ord.UploadedResume
		case "cover_letter":
			name = ord.UploadedCover
		case "job_description":
			name = ord.UploadedJobDesc
		default:
			return weberr.BadRequest(fmt.Errorf("unknown file kind %q", kind))
		}

		if name == "" || !store.Exists(name) {
			return weberr.NotFound(ErrFileMissing)
		}

		f, err := store.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()

		return web.RespondFile(ctx, w, name, f)
	}
}

// actorName resolves the logged-in admin's username for the tracking
// audit trail.
func actorName(ctx context.Context, db sqlx.ExtContext) string {
	c, err := claims.Get(ctx)
	if err != nil {
		return "admin"
	}

	admin, err := auth.FetchAdminByID(ctx, db, c.UserID)
	if err != nil {
		return "admin"
	}
	return admin.Username
}

func notifyStatus(ctx context.Context, db *sqlx.DB, ord Order, mailer *email.Mailer, bg *background.Background) {
	svcName := string(ord.Tier)
	if svc, err := service.Fetch(ctx, db, ord.ServiceID); err == nil {
		svcName = svc.Name
	}

	info := orderInfo(ord, svcName, mailer.SiteURL)
	bg.Add(func() error {
		subject, body := email.StatusUpdate(info)
		return mailer.Send(ord.Email, subject, body)
	})
}
