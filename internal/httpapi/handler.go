package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/options"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type handler struct {
	c            *lemonrest.Collection
	log          *zap.Logger
	maxBodyBytes int64
}

type deleted struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

type health struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var records []*lemonrest.Record
	if err := h.c.View(r.Context(), func(tx *lemonrest.Tx) error {
		var err error
		records, err = tx.All(opts)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, records)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := lemonrest.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var doc json.RawMessage
	if err := h.c.View(r.Context(), func(tx *lemonrest.Tx) error {
		var err error
		doc, err = tx.GetJSON(id)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, doc)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var created *lemonrest.Record
	if err := h.c.Update(r.Context(), func(tx *lemonrest.Tx) error {
		var err error
		created, err = tx.Create(body)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+strconv.FormatInt(created.ID(), 10))
	WriteSuccess(w, http.StatusCreated, created)
}

// merge serves both PUT and PATCH; both shallow merge into the record.
func (h *handler) merge(w http.ResponseWriter, r *http.Request) {
	id, err := lemonrest.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var merged *lemonrest.Record
	if err := h.c.Update(r.Context(), func(tx *lemonrest.Tx) error {
		var err error
		merged, err = tx.Merge(id, body)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, merged)
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := lemonrest.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.c.Update(r.Context(), func(tx *lemonrest.Tx) error {
		return tx.Delete(id)
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, deleted{ID: id, Deleted: true})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.c.Count(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, health{Status: "ok", Records: n})
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.Wrap(lemonrest.ErrInvalidRecord, "body is empty")
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.Wrapf(errBodyTooLarge, "limit is %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrap(err, "could not read request body")
	}

	return b, nil
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == StatusClientClosedRequest {
		h.log.Debug("client went away",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
		)
	} else if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	WriteError(w, status, messageFor(status, err))
}

// listOptions turns the query string into list options. No parameters
// at all means the whole collection in insertion order.
func listOptions(q url.Values) (*options.ListOptions, error) {
	if len(q) == 0 {
		return nil, nil
	}

	opts := options.List()
	if v := q.Get("order"); v != "" {
		o, err := options.ParseOrder(v)
		if err != nil {
			return nil, err
		}
		opts.SetOrder(o)
	}

	if v := q.Get("from"); v != "" {
		id, err := lemonrest.ParseID(v)
		if err != nil {
			return nil, errors.Wrapf(options.ErrInvalidOptions, "from %q is not an id", v)
		}
		opts.From(id)
	}

	if v := q.Get("to"); v != "" {
		id, err := lemonrest.ParseID(v)
		if err != nil {
			return nil, errors.Wrapf(options.ErrInvalidOptions, "to %q is not an id", v)
		}
		opts.To(id)
	}

	for _, v := range q["filter"] {
		f, err := options.ParseFilter(v)
		if err != nil {
			return nil, err
		}
		opts.Where(f.Field, f.Pattern)
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(options.ErrInvalidOptions, "offset %q", v)
		}
		opts.Offset(n)
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(options.ErrInvalidOptions, "limit %q", v)
		}
		opts.Limit(n)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}
