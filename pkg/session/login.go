package session

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/stockly-app/sessionkit/pkg/apiclient"
	"github.com/stockly-app/sessionkit/pkg/identity"
	"github.com/stockly-app/sessionkit/pkg/logger"
	"github.com/stockly-app/sessionkit/pkg/messages"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string          `json:"access"`
	Refresh string          `json:"refresh"`
	User    json.RawMessage `json:"user"`
}

// Login exchanges username and password for tokens and starts a session.
// Failures are sent to the Reporter and yield false; the session is left
// unchanged. When several logins overlap, the last one to finish decides the
// session.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	if username == "" || password == "" {
		m.report(ctx, ReportValidation, messages.LoginMissingInputTitle, messages.LoginMissingInputMessage, "")
		return false
	}

	m.beginAuthenticating()
	defer m.endAuthenticating()

	var resp loginResponse
	err := m.client.Post(ctx, apiclient.EndpointLogin, loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		m.log.ErrorContext(ctx, "login request failed", logger.Username(username), logger.Error(err))
		m.reportFailure(ctx, err)
		return false
	}

	if resp.Access == "" || resp.Refresh == "" {
		m.report(ctx, ReportMissingCredentials, messages.LoginMissingCredentialsTitle, messages.LoginMissingCredentialsMessage, "")
		return false
	}

	u := m.resolveUser(ctx, resp, username)

	if err := m.store.SaveSession(ctx, resp.Access, resp.Refresh, u); err != nil {
		m.log.ErrorContext(ctx, "failed to persist session", logger.Username(username), logger.Error(err))
		m.reportFailure(ctx, err)
		return false
	}

	m.mu.Lock()
	m.version++
	m.user = u
	m.notifyLocked()
	m.mu.Unlock()

	m.log.InfoContext(ctx, "signed in", logger.Event("login"), logger.UserID(u.ID), logger.Username(u.Username))
	return true
}

// resolveUser prefers the response's user object, then the access token
// payload, then a bare record. The username is always the one typed in.
func (m *Manager) resolveUser(ctx context.Context, resp loginResponse, username string) *identity.User {
	var u *identity.User

	if raw := bytes.TrimSpace(resp.User); len(raw) > 0 && raw[0] == '{' {
		if p, err := identity.ParseProfile(raw); err == nil {
			u = p.ResponseUser(username)
		} else {
			m.log.WarnContext(ctx, "ignoring malformed user in login response", logger.Error(err))
		}
	}

	if u == nil {
		u = identity.Decode(ctx, m.log, resp.Access)
	}
	if u == nil {
		u = &identity.User{}
	}

	u.Username = username
	return u
}

func (m *Manager) reportFailure(ctx context.Context, err error) {
	m.reporter.Report(ctx, Report{
		Kind:    ReportLoginFailed,
		Title:   m.messages.T(messages.LoginFailedTitle),
		Message: apiclient.ErrorMessage(err, m.messages.T(messages.LoginFailedMessage)),
		Code:    apiclient.ErrorStatus(err),
	})
}

func (m *Manager) report(ctx context.Context, kind ReportKind, titleKey, messageKey, code string) {
	m.reporter.Report(ctx, Report{
		Kind:    kind,
		Title:   m.messages.T(titleKey),
		Message: m.messages.T(messageKey),
		Code:    code,
	})
}

func (m *Manager) beginAuthenticating() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	if m.inFlight == 1 {
		m.notifyLocked()
	}
}

func (m *Manager) endAuthenticating() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	if m.inFlight == 0 {
		m.notifyLocked()
	}
}
