// Package session manages the three stored credential artifacts (identity
// token, session token, profile) and decides which bearer token a call uses.
//
// Token precedence is fixed: an unexpired session token, else a fresh exchange
// of the identity token, else the development token outside production, else
// apperr.KindNoCredential.
//
// The profile role is an advisory claim for UI gating. Nothing here authorizes
// anything; the backend verifies every bearer token.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/apperr"
	"gitlab.connectwisedev.com/storefront/pkg/storage"
)

// State of the session state machine.
type State int

const (
	Anonymous State = iota
	IdentityOnly
	AuthenticatedUser
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case IdentityOnly:
		return "identity_only"
	case AuthenticatedUser:
		return "authenticated_user"
	case AuthenticatedAdmin:
		return "authenticated_admin"
	default:
		return "anonymous"
	}
}

// Backend is the part of the gateway the session needs.
type Backend interface {
	ExchangeIdentityForSession(ctx context.Context, identityToken string) (string, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
}

// Options configures a Store.
type Options struct {
	// AdminEmails is the advisory allow-list; comparison is case-insensitive.
	AdminEmails []string
	// DevToken is returned by Token as a last resort when Production is false.
	DevToken   string
	Production bool
	Now        func() time.Time
}

const noCredentialDetail = "Admin token missing. Please login again as admin."

// Store is the session service. It is safe for concurrent use.
type Store struct {
	store   storage.Store
	backend Backend
	admins  map[string]bool
	opts    Options

	// mu serializes exchanges so concurrent callers share one session token.
	mu sync.Mutex
}

func New(st storage.Store, backend Backend, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	admins := make(map[string]bool, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Store{store: st, backend: backend, admins: admins, opts: opts}
}

// SignIn records a successful identity provider login. The profile is read
// from the identity token's claims. Any session token belonging to a previous
// login is discarded.
func (s *Store) SignIn(ctx context.Context, identityToken string) (models.Profile, error) {
	claims, err := decodeClaims(identityToken)
	if err != nil {
		return models.Profile{}, fmt.Errorf("sign in: %w", err)
	}
	email := claimString(claims, "email")
	if email == "" {
		return models.Profile{}, fmt.Errorf("sign in: identity token has no email claim")
	}
	profile := models.Profile{
		Name:      claimString(claims, "name"),
		Email:     email,
		Role:      s.roleFor(email, ""),
		AvatarURL: claimString(claims, "picture"),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, storage.KeyAdminToken); err != nil {
		return models.Profile{}, fmt.Errorf("sign in: %w", err)
	}
	if err := s.store.Set(ctx, storage.KeyUserToken, identityToken); err != nil {
		return models.Profile{}, fmt.Errorf("sign in: %w", err)
	}
	if err := storage.WriteJSON(ctx, s.store, storage.KeyUserData, profile); err != nil {
		return models.Profile{}, fmt.Errorf("sign in: %w", err)
	}
	log.Printf("Signed in %s (role %s)", profile.Email, profile.Role)
	return profile, nil
}

// LoginWithPassword performs an admin credential login and stores the
// returned session token.
func (s *Store) LoginWithPassword(ctx context.Context, email, password string) (models.Profile, error) {
	tok, err := s.backend.AdminLogin(ctx, email, password)
	if err != nil {
		return models.Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, storage.KeyAdminToken, tok); err != nil {
		return models.Profile{}, fmt.Errorf("store session token: %w", err)
	}

	profile, ok := s.profile(ctx)
	if !ok || !strings.EqualFold(profile.Email, email) {
		profile = models.Profile{Email: strings.TrimSpace(email)}
	}
	claims, _ := decodeClaims(tok)
	profile.Role = s.roleFor(profile.Email, claimString(claims, "role"))
	if profile.Name == "" {
		profile.Name = claimString(claims, "name")
	}
	if err := storage.WriteJSON(ctx, s.store, storage.KeyUserData, profile); err != nil {
		return models.Profile{}, fmt.Errorf("store profile: %w", err)
	}
	return profile, nil
}

// Exchange turns the stored identity token into a session token. It is a
// no-op when a usable session token already exists. A failed exchange leaves
// the identity login in place.
func (s *Store) Exchange(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeLocked(ctx)
}

func (s *Store) exchangeLocked(ctx context.Context) (string, error) {
	if tok, ok := s.sessionToken(ctx); ok {
		return tok, nil
	}
	identity, ok, err := s.store.Get(ctx, storage.KeyUserToken)
	if err != nil {
		return "", fmt.Errorf("read identity token: %w", err)
	}
	if !ok || identity == "" {
		return "", apperr.NoCredential(noCredentialDetail)
	}

	tok, err := s.backend.ExchangeIdentityForSession(ctx, identity)
	if err != nil {
		log.Printf("Identity exchange failed, staying signed in without a session token: %v", err)
		return "", err
	}
	if err := s.store.Set(ctx, storage.KeyAdminToken, tok); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	return tok, nil
}

// Token resolves the bearer token for an authenticated call.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.exchangeLocked(ctx)
	if err == nil {
		return tok, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !s.opts.Production && s.opts.DevToken != "" {
		log.Println("No session token available, using the development token.")
		return s.opts.DevToken, nil
	}
	if errors.Is(err, apperr.ErrNoCredential) {
		return "", err
	}
	return "", &apperr.Error{Kind: apperr.KindNoCredential, Detail: noCredentialDetail, Err: err}
}

// Logout clears identity token, session token and profile in one step.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, storage.KeyUserToken, storage.KeyAdminToken, storage.KeyUserData); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Profile returns the cached profile, if any.
func (s *Store) Profile(ctx context.Context) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile(ctx)
}

func (s *Store) profile(ctx context.Context) (models.Profile, bool) {
	var p models.Profile
	if err := storage.ReadJSON(ctx, s.store, storage.KeyUserData, &p); err != nil {
		log.Printf("Ignoring stored profile: %v", err)
		return models.Profile{}, false
	}
	if p.Email == "" {
		return models.Profile{}, false
	}
	return p, true
}

// State derives the current state from storage.
func (s *Store) State(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionToken(ctx); ok {
		if p, ok := s.profile(ctx); ok && p.IsAdmin() {
			return AuthenticatedAdmin
		}
		return AuthenticatedUser
	}
	if identity, ok, err := s.store.Get(ctx, storage.KeyUserToken); err == nil && ok && identity != "" {
		return IdentityOnly
	}
	return Anonymous
}

// IsAdmin reports the advisory admin claim of the signed-in profile. Use it
// for UI gating only.
func (s *Store) IsAdmin(ctx context.Context) bool {
	p, ok := s.Profile(ctx)
	return ok && p.IsAdmin()
}

// sessionToken returns the stored session token unless it is a JWT whose exp
// claim has passed. Opaque tokens are assumed valid.
func (s *Store) sessionToken(ctx context.Context) (string, bool) {
	tok, ok, err := s.store.Get(ctx, storage.KeyAdminToken)
	if err != nil {
		log.Printf("Failed to read session token: %v", err)
		return "", false
	}
	if !ok || tok == "" {
		return "", false
	}
	if claims, err := decodeClaims(tok); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !s.opts.Now().Before(exp.Time) {
			return "", false
		}
	}
	return tok, true
}

func (s *Store) roleFor(email, claimedRole string) models.Role {
	if s.admins[strings.ToLower(strings.TrimSpace(email))] {
		return models.RoleAdmin
	}
	if claimedRole == string(models.RoleAdmin) || claimedRole == "superadmin" {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// decodeClaims reads JWT claims without verifying the signature. The client
// has no key to verify with; the values are display hints only.
func decodeClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if claims == nil {
		return ""
	}
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}
