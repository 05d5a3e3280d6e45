package account

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["error"]
}

func TestHandler_SignUp(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)

	rec := postJSON(t, h.SignUp, `{"email":"sarah@example.com","password":"secret1","full_name":"Sarah Johnson","role":"patient","age":32,"gender":"female"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "bearer", sess.TokenType)
	assert.NotEmpty(t, sess.AccessToken)

	rec = postJSON(t, h.SignUp, `{"email":"sarah@example.com","password":"secret1","full_name":"Again"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "User already registered", errorBody(t, rec))
}

func TestHandler_SignUp_Validation(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)

	rec := postJSON(t, h.SignUp, `{"email":"sarah@example.com","password":"123","full_name":"Sarah"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "at least 6 characters")

	rec = postJSON(t, h.SignUp, `{"email":"sarah@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "full_name is required", errorBody(t, rec))
}

func TestHandler_Token(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "doc@example.com", "doctor")
	h := NewHandler(env.svc)

	rec := postJSON(t, h.Token, `{"email":"doc@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.Token, `{"email":"doc@example.com","password":"nope!!"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid login credentials", errorBody(t, rec))
}

func TestHandler_Recover_AlwaysOK(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	rec := postJSON(t, h.Recover, `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Reset_BadToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	rec := postJSON(t, h.Reset, `{"token":"deadbeef","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "invalid or has expired")
}

func TestHandler_Logout_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	rec := postJSON(t, h.Logout, `{}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_Session(t *testing.T) {
	env := newTestEnv(t)
	sess := env.signUp(t, "p@example.com", "patient")
	h := NewHandler(env.svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/v1/session", nil)
	req = req.WithContext(sessionContext(t, env, sess))
	rec := httptest.NewRecorder()
	require.NoError(t, h.Session(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_name":"Sarah Johnson"`)
}
