package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"shoplist-api/domain"
	"shoplist-api/storage"
)

const (
	listPrefix    = "/api/list"
	allowedMethod = "GET, PUT, DELETE, OPTIONS"
	pingTimeout   = 2 * time.Second
)

// Register wires up all API routes on the provided Echo instance. suggester
// may be nil, in which case POST /api/suggest answers 503.
func Register(e *echo.Echo, store Storage, suggester Suggester, opts Options, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	opts = opts.withDefaults()

	lists := &listHandler{store: store, opts: opts, logger: logger}
	e.Any(listPrefix, lists.serve)
	e.Any(listPrefix+"/*", lists.serve)
	e.POST("/api/suggest", postSuggest(suggester, opts, logger))
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: reasonStorage})
		}
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

type listHandler struct {
	store  Storage
	opts   Options
	logger *log.Logger
}

// serve validates the path and token before any storage access, then
// dispatches on the method.
func (h *listHandler) serve(c echo.Context) (err error) {
	method := c.Request().Method
	if method == http.MethodOptions {
		return c.NoContent(http.StatusNoContent)
	}

	metrics, spanCtx := newListRequestMetrics(c.Request().Context(), h.logger, method)
	c.SetRequest(c.Request().WithContext(spanCtx))
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	token := c.Param("*")
	if token == "" || strings.Contains(token, "/") {
		metrics.SetErrorStage("path")
		return fail(c, http.StatusNotFound, reasonInvalidPath, nil)
	}
	if !h.opts.TokenPattern.MatchString(token) {
		metrics.SetErrorStage("token")
		return fail(c, http.StatusBadRequest, reasonInvalidToken, nil)
	}
	metrics.SetToken(token)

	switch method {
	case http.MethodGet:
		return h.get(c, token, metrics)
	case http.MethodPut:
		return h.put(c, token, metrics)
	case http.MethodDelete:
		return h.delete(c, token, metrics)
	default:
		metrics.SetErrorStage("method")
		c.Response().Header().Set(echo.HeaderAllow, allowedMethod)
		return fail(c, http.StatusMethodNotAllowed, reasonMethodNotAllowed, nil)
	}
}

func (h *listHandler) get(c echo.Context, token string, metrics *listRequestMetrics) error {
	doc, err := h.load(c.Request().Context(), token, metrics)
	if err != nil {
		metrics.SetFailure(err)
		return fail(c, http.StatusInternalServerError, reasonStorage, nil)
	}
	metrics.SetItemsOut(len(doc.Items))
	metrics.SetVersion(doc.Version)
	return c.JSON(http.StatusOK, doc)
}

func (h *listHandler) put(c echo.Context, token string, metrics *listRequestMetrics) error {
	ctx := c.Request().Context()
	body, err := readBody(c.Request().Body, h.opts.MaxBodyBytes)
	if err != nil {
		metrics.SetErrorStage("body")
		if errors.Is(err, errBodyTooLarge) {
			return fail(c, http.StatusRequestEntityTooLarge, reasonBodyTooLarge, map[string]any{"limit": h.opts.MaxBodyBytes})
		}
		return fail(c, http.StatusBadRequest, reasonInvalidBody, nil)
	}

	now := h.opts.nowMillis()
	req, err := domain.ParsePutRequest(body, now)
	if err != nil {
		metrics.SetErrorStage("validate")
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return fail(c, http.StatusBadRequest, reasonInvalidBody, nil)
		}
		return validationFailure(c, verr)
	}
	metrics.SetItemsIn(len(req.Items))
	metrics.SetDeleted(len(req.DeletedIDs))

	existing, err := h.load(ctx, token, metrics)
	if err != nil {
		metrics.SetFailure(err)
		return fail(c, http.StatusInternalServerError, reasonStorage, nil)
	}

	mergeStart := time.Now()
	items := domain.Merge(existing, req.Items, req.DeletedIDs)
	next := domain.NextRevision(existing, req.Title, items, now)
	metrics.ObserveMerge(time.Since(mergeStart))

	data, err := domain.EncodeDocument(next)
	if err != nil {
		metrics.SetErrorStage("encode")
		metrics.SetFailure(err)
		return fail(c, http.StatusInternalServerError, reasonInternal, nil)
	}
	writeStart := time.Now()
	err = h.store.Write(ctx, token, data)
	metrics.ObserveWrite(time.Since(writeStart))
	if err != nil {
		metrics.SetErrorStage("write")
		metrics.SetFailure(err)
		if errors.Is(err, storage.ErrDocumentTooLarge) {
			return fail(c, http.StatusRequestEntityTooLarge, reasonBodyTooLarge, nil)
		}
		return fail(c, http.StatusInternalServerError, reasonStorage, nil)
	}

	metrics.SetItemsOut(len(next.Items))
	metrics.SetVersion(next.Version)
	return c.JSON(http.StatusOK, next)
}

func (h *listHandler) delete(c echo.Context, token string, metrics *listRequestMetrics) error {
	writeStart := time.Now()
	err := h.store.Delete(c.Request().Context(), token)
	metrics.ObserveWrite(time.Since(writeStart))
	if err != nil {
		metrics.SetErrorStage("delete")
		metrics.SetFailure(err)
		return fail(c, http.StatusInternalServerError, reasonStorage, nil)
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// load returns the stored document for token, or a fresh default when none
// exists or the stored blob is unreadable.
func (h *listHandler) load(ctx context.Context, token string, metrics *listRequestMetrics) (domain.Document, error) {
	now := h.opts.nowMillis()
	readStart := time.Now()
	data, found, err := h.store.Read(ctx, token)
	metrics.ObserveRead(time.Since(readStart))
	if err != nil {
		metrics.SetErrorStage("read")
		return domain.Document{}, err
	}
	if !found {
		return domain.NewDocument(h.opts.DefaultTitle, now), nil
	}

	doc, skipped, err := domain.DecodeStored(data, h.opts.DefaultTitle, now)
	if err != nil {
		metrics.SetCorrupt(true)
		h.logger.WithFields(log.Fields{
			"token_hash": hashToken(token),
			"error":      err.Error(),
		}).Warn("stored list unreadable, serving default document")
		return domain.NewDocument(h.opts.DefaultTitle, now), nil
	}
	for _, verr := range skipped {
		h.logger.WithFields(log.Fields{
			"token_hash": hashToken(token),
			"kind":       string(verr.Kind),
			"index":      verr.Index,
			"item_id":    verr.ItemID,
		}).Warn("skipping corrupt stored item")
	}
	metrics.SetSkipped(len(skipped))
	return doc, nil
}

func validationFailure(c echo.Context, verr *domain.ValidationError) error {
	switch {
	case verr.Kind == domain.KindInvalidJSON:
		return fail(c, http.StatusBadRequest, reasonInvalidJSON, nil)
	case verr.IsItemError():
		details := map[string]any{"kind": string(verr.Kind), "index": verr.Index}
		if verr.ItemID != "" {
			details["id"] = verr.ItemID
		}
		return fail(c, http.StatusBadRequest, reasonInvalidItem, details)
	default:
		return fail(c, http.StatusBadRequest, reasonInvalidBody, map[string]any{"kind": string(verr.Kind)})
	}
}

func fail(c echo.Context, status int, reason string, details map[string]any) error {
	return c.JSON(status, errorResponse{Error: reason, Details: details})
}
