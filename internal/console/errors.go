package console

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/catalog"
	"github.com/xenking/salesdesk/internal/domain/draft"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/session"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

const maxBody = 1 << 20

func decodeBody(r *http.Request, decode func(*jx.Decoder) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return decode(jx.DecodeBytes(data))
}

func writeJSON(w http.ResponseWriter, status int, encode func(*jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeDraft(w http.ResponseWriter, status int, s draft.Snapshot) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("draft", func(e *jx.Encoder) { encodeSnapshot(e, s) })
		})
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	httpmiddleware.WriteDetail(w, status, detail)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// writeError maps a failure to a status and a {"detail"} body. Backend
// rejections of the session's token end the session.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *draft.ValidationError
		subErr *draft.SubmissionError
		rej    draft.Rejection
	)
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		detail := session.ErrSessionExpired.Error()
		if errors.As(err, &subErr) && subErr.Detail != "" {
			detail += ": " + subErr.Detail
		}
		writeDetail(w, http.StatusUnauthorized, detail)
	case errors.Is(err, session.ErrNotFound):
		writeDetail(w, http.StatusUnauthorized, "session not found, log in again")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrForbiddenRole):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.As(err, &verr):
		writeDetail(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, catalog.ErrInactive), errors.Is(err, product.ErrNotFound):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, draft.ErrSubmitting):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, draft.ErrLineNotFound), errors.Is(err, draft.ErrIndexOutOfRange):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.As(err, &subErr):
		status := http.StatusBadGateway
		if subErr.Kind == draft.KindTimeout {
			status = http.StatusGatewayTimeout
		}
		zctx.From(r.Context()).Warn("Submission failed",
			zap.Stringer("kind", subErr.Kind),
			zap.Error(subErr.Err),
		)
		writeDetail(w, status, subErr.Detail)
	case errors.As(err, &rej):
		switch rej.StatusCode() {
		case http.StatusUnauthorized:
			if s := sessionFrom(r.Context()); s != nil {
				h.sessions.Logout(s.ID)
			}
			writeDetail(w, http.StatusUnauthorized, session.ErrSessionExpired.Error())
		case http.StatusNotFound:
			writeDetail(w, http.StatusUnprocessableEntity, rej.Detail())
		default:
			writeDetail(w, http.StatusBadGateway, rej.Detail())
		}
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeDetail(w, http.StatusBadGateway, "backend unavailable")
	}
}
