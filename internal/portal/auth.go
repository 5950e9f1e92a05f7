package portal

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"pecportal/internal/identity"
	"pecportal/internal/ids"
	"pecportal/internal/profiles"
)

// SignUpInput is the signup form.
type SignUpInput struct {
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Password   string        `json:"password"`
	Role       profiles.Role `json:"role"`
	Department string        `json:"department"`
}

func (in SignUpInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < identity.MinPasswordLength {
		return invalid("password must be at least %d characters", identity.MinPasswordLength)
	}
	if !in.Role.Valid() {
		return invalid("role %q is not supported", in.Role)
	}
	if strings.TrimSpace(in.Department) == "" {
		return invalid("department is required")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email %q is not valid", email)
	}
	return nil
}

// SignUp publishes the new user locally before the remote account exists, so
// the portal reacts immediately. Leads start out attached to the default club.
// When the backend is unreachable the local user is kept; any other failure
// clears it and is returned.
func (a *App) SignUp(ctx context.Context, in SignUpInput) (*profiles.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)

	user := profiles.User{
		ID:         ids.NewTemporary(),
		Name:       strings.TrimSpace(in.Name),
		Role:       in.Role,
		Email:      email,
		Department: strings.TrimSpace(in.Department),
	}
	if in.Role == profiles.RoleLead {
		user.ClubID = profiles.DefaultLeadClubID
	}
	a.publishLocalUser(user)

	session, err := a.deps.Provider.SignUp(ctx, identity.SignUpRequest{
		Email:    email,
		Password: in.Password,
		Metadata: identity.Metadata{
			Name:       user.Name,
			Role:       user.Role,
			Department: user.Department,
			ClubID:     user.ClubID,
		},
	})
	if err != nil {
		if identity.IsOffline(err) {
			a.logger.Warn("backend unreachable, keeping local account", "email", email, "error", err)
			return &user, nil
		}
		a.clearSession()
		return nil, err
	}

	if session != nil {
		a.mu.Lock()
		a.session = session
		if a.user != nil && a.user.ID == user.ID {
			a.user.ID = session.User.ID
		}
		a.mu.Unlock()
		user.ID = session.User.ID
	}
	a.logger.Info("signed up", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// SignIn authenticates and waits for the profile to resolve. The returned user
// is nil when no profile could be found. Without a reachable backend a
// local-only student account stands in.
func (a *App) SignIn(ctx context.Context, email, password string) (*profiles.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password is required")
	}
	email = strings.TrimSpace(email)

	session, err := a.deps.Provider.SignIn(ctx, email, password)
	if err != nil {
		if identity.IsOffline(err) {
			a.logger.Warn("backend unreachable, using local account", "email", email, "error", err)
			user := offlineUser(email)
			a.publishLocalUser(user)
			return &user, nil
		}
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, err
	}
	return a.adoptSession(ctx, session), nil
}

// SignInWithIDToken signs in with a verified federated ID token.
func (a *App) SignInWithIDToken(ctx context.Context, provider, idToken string) (*profiles.User, error) {
	session, err := a.deps.Provider.SignInWithIDToken(ctx, provider, idToken)
	if err != nil {
		return nil, err
	}
	return a.adoptSession(ctx, session), nil
}

func (a *App) adoptSession(ctx context.Context, session *identity.Session) *profiles.User {
	done := a.startResolution(session, 0)
	select {
	case <-done:
	case <-ctx.Done():
	}
	user := a.User()
	if user != nil {
		a.logger.Info("signed in", "user_id", user.ID, "role", user.Role)
	}
	return user
}

// offlineUser derives a local account from an email address.
func offlineUser(email string) profiles.User {
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}
	return profiles.User{
		ID:    ids.NewTemporary(),
		Name:  name,
		Role:  profiles.RoleStudent,
		Email: email,
	}
}

// SignOut clears the user immediately and returns home. Remote sign-out
// failures are logged only.
func (a *App) SignOut(ctx context.Context) Navigation {
	a.mu.Lock()
	a.clearSessionLocked()
	a.selectedClub = nil
	nav := a.navigateLocked(string(ViewHome))
	a.mu.Unlock()

	if err := a.deps.Provider.SignOut(ctx); err != nil {
		a.logger.Warn("remote sign out failed", "error", err)
	}
	return nav
}
