package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/censor"
	"bookstories/pkg/logger"
	"bookstories/pkg/models"
	"bookstories/pkg/storage"
)

const maxLimit = 100

const uuidPattern = "{id:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}}"

type API struct {
	ServiceName string

	r      *mux.Router
	db     storage.Storage
	censor *censor.Censor
	sink   *logger.Sink
}

// New builds the comments API. censor and sink may be nil.
func New(name string, db storage.Storage, c *censor.Censor, sink *logger.Sink) *API {
	if c == nil {
		c = censor.New()
	}
	api := API{
		ServiceName: name,
		r:           mux.NewRouter(),
		db:          db,
		censor:      c,
		sink:        sink,
	}
	api.endpoints()

	return &api
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.headerMiddleware)
	if api.sink != nil {
		api.r.Use(api.loggingMiddleware)
	}

	api.r.HandleFunc("/comments", api.commentsHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/comments/count", api.countHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/comments", api.createCommentHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/comments/"+uuidPattern, api.updateCommentHandler).Methods(http.MethodPut)
	api.r.HandleFunc("/comments/"+uuidPattern, api.deleteCommentHandler).Methods(http.MethodDelete)
}

func (api *API) commentsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	postID, ok := postIDParam(w, r)
	if !ok {
		return
	}

	page, err := intParam(r, "page", 1)
	if err != nil || page < 1 {
		log.Debugf("[commentsHandler][%s] invalid page %q", sID, r.URL.Query().Get("page"))
		http.Error(w, "Bad Request: invalid page", http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", storage.DefaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		log.Debugf("[commentsHandler][%s] invalid limit %q", sID, r.URL.Query().Get("limit"))
		http.Error(w, "Bad Request: limit must be between 1 and 100", http.StatusBadRequest)
		return
	}

	comments, numPages, err := api.db.Comments(r.Context(), postID, page, limit)
	if err != nil {
		api.writeError(w, r, "commentsHandler", err)
		return
	}

	resp := models.CommentsPage{
		Comments: comments,
		Pagination: models.Pagination{
			TotalPages:  numPages,
			CurrentPage: page,
			Limit:       limit,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("[commentsHandler][%s] error encoding response: %v", sID, err)
	}
}

func (api *API) countHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := postIDParam(w, r)
	if !ok {
		return
	}

	n, err := api.db.CommentCount(r.Context(), postID)
	if err != nil {
		api.writeError(w, r, "countHandler", err)
		return
	}

	if err := json.NewEncoder(w).Encode(models.CountResponse{Count: n}); err != nil {
		log.Errorf("[countHandler][%s] error encoding response: %v", shorten(GetRequestID(r.Context())), err)
	}
}

func (api *API) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("[createCommentHandler][%s] failed to decode request body: %v", sID, err)
		http.Error(w, "Bad Request: invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !api.checkText(w, r, "createCommentHandler", req.Text) {
		return
	}

	comment, err := api.db.CreateComment(r.Context(), models.Comment{
		PostID:   req.PostID,
		ParentID: req.ParentID,
		Author:   req.Author,
		Text:     req.Text,
	})
	if err != nil {
		api.writeError(w, r, "createCommentHandler", err)
		return
	}

	log.Infof("[createCommentHandler][%s] comment %v added to post %v", sID, comment.ID, comment.PostID)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(comment); err != nil {
		log.Errorf("[createCommentHandler][%s] error encoding response: %v", sID, err)
	}
}

func (api *API) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	id := uuid.FromStringOrNil(mux.Vars(r)["id"])

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("[updateCommentHandler][%s] failed to decode request body: %v", sID, err)
		http.Error(w, "Bad Request: invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !api.checkText(w, r, "updateCommentHandler", req.Text) {
		return
	}

	comment, err := api.db.UpdateComment(r.Context(), id, req.Text)
	if err != nil {
		api.writeError(w, r, "updateCommentHandler", err)
		return
	}

	if err := json.NewEncoder(w).Encode(comment); err != nil {
		log.Errorf("[updateCommentHandler][%s] error encoding response: %v", sID, err)
	}
}

func (api *API) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	id := uuid.FromStringOrNil(mux.Vars(r)["id"])

	if err := api.db.DeleteComment(r.Context(), id); err != nil {
		api.writeError(w, r, "deleteCommentHandler", err)
		return
	}

	log.Infof("[deleteCommentHandler][%s] comment %v deleted", shorten(GetRequestID(r.Context())), id)
	w.WriteHeader(http.StatusNoContent)
}

// checkText rejects empty and censored text. It reports whether the handler may go on.
func (api *API) checkText(w http.ResponseWriter, r *http.Request, handler, text string) bool {
	if strings.TrimSpace(text) == "" {
		http.Error(w, storage.ErrEmptyText.Error(), http.StatusBadRequest)
		return false
	}
	if api.censor.Check(text) {
		log.Infof("[%s][%s] comment text rejected by censor", handler, shorten(GetRequestID(r.Context())))
		http.Error(w, "comment text is not allowed", http.StatusUnprocessableEntity)
		return false
	}
	return true
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	sID := shorten(GetRequestID(r.Context()))

	switch {
	case errors.Is(err, storage.ErrPostIDNotProvided), errors.Is(err, storage.ErrEmptyText):
		log.Debugf("[%s][%s] %v", handler, sID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrCommentNotFound), errors.Is(err, storage.ErrParentCommentNotFound):
		log.Debugf("[%s][%s] %v", handler, sID, err)
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrReplyDepthExceeded):
		log.Debugf("[%s][%s] %v", handler, sID, err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Errorf("[%s][%s] storage error: %v", handler, sID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func postIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	postID, err := uuid.FromString(r.URL.Query().Get("post_id"))
	if err != nil || postID == uuid.Nil {
		http.Error(w, "Bad Request: missing or invalid post_id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return postID, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
