package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"repostack/internal/auth"
	"repostack/internal/db"
)

type createAccountRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     db.Role `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// accountJSON is the public shape of an account. PasswordHash and the
// disabled flag never leave the server.
func accountJSON(acct *db.Account) map[string]interface{} {
	return map[string]interface{}{
		"id":         acct.ID,
		"username":   acct.Username,
		"email":      acct.Email,
		"role":       acct.Role,
		"created_at": acct.CreatedAt,
		"updated_at": acct.UpdatedAt,
		"last_login": acct.LastLogin,
	}
}

// createAccountHandler registers a new account. Anyone may register a
// reader; publisher and admin accounts take an admin caller.
func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 50 {
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	if req.Role == "" {
		req.Role = db.RoleReader
	}
	if req.Role != db.RoleReader {
		caller := getAccountFromContext(r.Context())
		if caller == nil || !caller.Role.Allows("admin") {
			writeError(w, http.StatusForbidden, "Only admins can create publisher or admin accounts")
			return
		}
	}

	acct, err := s.DB.CreateAccount(req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, http.StatusConflict, "Username or email already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, accountJSON(acct))
}

// loginHandler checks credentials, issues a session token, and records the
// session so it can be revoked later.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	acct, err := s.DB.AccountByUsername(req.Username)
	if err != nil || !s.DB.CheckPassword(acct, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	issuer := auth.NewIssuer(s.Config.JWTSecret, auth.SessionTTL)
	token, tokenHash, expiresAt, err := issuer.Issue(acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session token")
		return
	}

	userAgent := r.Header.Get("User-Agent")
	clientIP := getClientIP(r)
	sess, err := s.DB.CreateSession(acct.ID, tokenHash, expiresAt, &userAgent, &clientIP)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := s.DB.RecordLogin(acct.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
		"session_id": sess.ID,
		"account":    accountJSON(acct),
	})
}

// logoutHandler revokes the session the request authenticated with.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	acct := getAccountFromContext(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if sess := getSessionFromContext(r.Context()); sess != nil {
		if err := s.DB.DeleteSession(sess.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to log out")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// changePasswordHandler replaces the caller's password and revokes every
// other session so a stolen token dies with the old password.
func (s *Server) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	acct := getAccountFromContext(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new passwords are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "New password must be at least 8 characters long")
		return
	}

	if !s.DB.CheckPassword(acct, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err := s.DB.SetPassword(acct.ID, req.NewPassword); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to change password")
		return
	}

	keepID := 0
	if sess := getSessionFromContext(r.Context()); sess != nil {
		keepID = sess.ID
	}
	_ = s.DB.DeleteOtherSessions(acct.ID, keepID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// accountProfileHandler returns the caller's own account.
func (s *Server) accountProfileHandler(w http.ResponseWriter, r *http.Request) {
	acct := getAccountFromContext(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, accountJSON(acct))
}

// listAccountsHandler pages through accounts. Admin only.
func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	caller := getAccountFromContext(r.Context())
	if caller == nil || !caller.Role.Allows("admin") {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	accts, err := s.DB.ListAccounts(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	out := make([]map[string]interface{}, 0, len(accts))
	for i := range accts {
		out = append(out, accountJSON(&accts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// disableAccountHandler disables another account and revokes its
// credentials. Admin only; admins cannot disable themselves.
func (s *Server) disableAccountHandler(w http.ResponseWriter, r *http.Request) {
	caller := getAccountFromContext(r.Context())
	if caller == nil || !caller.Role.Allows("admin") {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	accountID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	if accountID == caller.ID {
		writeError(w, http.StatusForbidden, "Cannot disable your own account")
		return
	}

	if _, err := s.DB.AccountByID(accountID); err != nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err := s.DB.DisableAccount(accountID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to disable account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account disabled"})
}
