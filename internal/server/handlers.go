package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"messagely/internal/auth"
	"messagely/internal/storage"
)

type parsers struct {
	loginPool         fastjson.ParserPool
	registerPool      fastjson.ParserPool
	createMessagePool fastjson.ParserPool
}

type handler struct {
	logger  *zap.SugaredLogger
	store   *storage.Store
	tokens  *auth.TokenService
	parsers parsers
}

type tokenResponse struct {
	Token string `json:"token"`
}

type usersResponse struct {
	Users []storage.UserSummary `json:"users"`
}

type userResponse struct {
	User storage.User `json:"user"`
}

type inboxResponse struct {
	Messages []storage.IncomingMessage `json:"messages"`
}

type outboxResponse struct {
	Messages []storage.OutgoingMessage `json:"messages"`
}

type messageResponse struct {
	Message storage.Message `json:"message"`
}

type messageDetailResponse struct {
	Message storage.MessageDetail `json:"message"`
}

// respondJSON marshals payload and writes it with the provided status code
func (h *handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

func (h *handler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error(err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// stringField extracts a required non-empty string field from a parsed body.
// It writes the 400 response itself when the field is absent or malformed.
func stringField(w http.ResponseWriter, v *fastjson.Value, field string) (string, bool) {
	if v == nil || !v.Exists(field) {
		http.Error(w, "Missing Field \""+field+"\"", http.StatusBadRequest)
		return "", false
	}

	b, err := v.Get(field).StringBytes()
	if err != nil {
		http.Error(w, "Field \""+field+"\" must be a string", http.StatusBadRequest)
		return "", false
	}

	if len(b) == 0 {
		http.Error(w, "Field \""+field+"\" must have non-zero length", http.StatusBadRequest)
		return "", false
	}

	return string(b), true
}

// identity returns the verified username attached by the authenticate
// middleware. A missing identity on a protected route means the route was
// wired outside the authenticated subrouter.
func (h *handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return "", false
	}
	return caller, true
}

// messageID parses the {id} path variable
func messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "Message id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// login handles "POST /login": verifies credentials, records the login time
// and returns a fresh token
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.loginPool.Get()
	defer h.parsers.loginPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, ok := stringField(w, v, "username")
	if !ok {
		return
	}
	password, ok := stringField(w, v, "password")
	if !ok {
		return
	}

	valid, err := h.store.VerifyCredentials(r.Context(), username, password)
	if err != nil {
		h.internalError(w, err)
		return
	}

	// unknown user and wrong password are deliberately the same response
	if !valid {
		http.Error(w, "Invalid username/password", http.StatusUnauthorized)
		return
	}

	if _, err := h.store.RecordLogin(r.Context(), username); err != nil {
		h.internalError(w, err)
		return
	}

	token, err := h.tokens.Issue(username)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// register handles "POST /register": creates the identity and logs the new
// user straight in by returning a token
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.registerPool.Get()
	defer h.parsers.registerPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	var params storage.RegisterParams
	fields := []struct {
		name string
		dst  *string
	}{
		{"username", &params.Username},
		{"password", &params.Password},
		{"first_name", &params.FirstName},
		{"last_name", &params.LastName},
		{"phone", &params.Phone},
	}
	for _, f := range fields {
		s, ok := stringField(w, v, f.name)
		if !ok {
			return
		}
		*f.dst = s
	}

	if _, err := h.store.RegisterUser(r.Context(), params); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		}
		h.internalError(w, err)
		return
	}

	token, err := h.tokens.Issue(params.Username)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

// listUsers handles "GET /users": the public listing, available to any
// authenticated caller
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListProfiles(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, usersResponse{Users: users})
}

// userDetail handles "GET /users/{username}": full profile, owner only
func (h *handler) userDetail(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	username := mux.Vars(r)["username"]
	if !auth.CanViewProfile(caller, username) {
		http.Error(w, "Profile detail is restricted to its owner", http.StatusForbidden)
		return
	}

	user, err := h.store.Profile(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, userResponse{User: user})
}

// messagesTo handles "GET /users/{username}/to": the user's inbox, owner only
func (h *handler) messagesTo(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	username := mux.Vars(r)["username"]
	if !auth.CanViewProfile(caller, username) {
		http.Error(w, "Messages are restricted to their recipient", http.StatusForbidden)
		return
	}

	messages, err := h.store.MessagesTo(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, inboxResponse{Messages: messages})
}

// messagesFrom handles "GET /users/{username}/from": the user's outbox, owner only
func (h *handler) messagesFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	username := mux.Vars(r)["username"]
	if !auth.CanViewProfile(caller, username) {
		http.Error(w, "Messages are restricted to their sender", http.StatusForbidden)
		return
	}

	messages, err := h.store.MessagesFrom(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, outboxResponse{Messages: messages})
}

// createMessage handles "POST /messages": the caller is always the sender
func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.createMessagePool.Get()
	defer h.parsers.createMessagePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	toUsername, ok := stringField(w, v, "to_username")
	if !ok {
		return
	}
	text, ok := stringField(w, v, "body")
	if !ok {
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), caller, toUsername, text)
	if err != nil {
		// the sentinel also covers a vanished sender, not just the recipient
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "Sender or recipient does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

// messageDetail handles "GET /messages/{id}": participants only
func (h *handler) messageDetail(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	id, ok := messageID(w, r)
	if !ok {
		return
	}

	msg, err := h.store.MessageByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotExist) {
			http.Error(w, "Message does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	if !auth.CanViewMessage(caller, msg.From.Username, msg.To.Username) {
		http.Error(w, "Only message participants may view it", http.StatusForbidden)
		return
	}

	h.respondJSON(w, http.StatusOK, messageDetailResponse{Message: msg})
}

// markRead handles "POST /messages/{id}/read": recipient only, exactly once
func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	id, ok := messageID(w, r)
	if !ok {
		return
	}

	msg, err := h.store.MessageByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotExist) {
			http.Error(w, "Message does not exist", http.StatusNotFound)
			return
		}
		h.internalError(w, err)
		return
	}

	if !auth.CanMarkRead(caller, msg.To.Username) {
		http.Error(w, "Only the recipient may mark a message read", http.StatusForbidden)
		return
	}

	updated, err := h.store.MarkRead(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrMessageAlreadyRead):
			http.Error(w, "Message is already read", http.StatusConflict)
		case errors.Is(err, storage.ErrMessageNotExist):
			http.Error(w, "Message does not exist", http.StatusNotFound)
		default:
			h.internalError(w, err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, messageResponse{Message: updated})
}
