package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"tomodachi/config"
	"tomodachi/internal/domain/user"
	"tomodachi/internal/events"
	"tomodachi/internal/repository"
	tomodachi_errors "tomodachi/pkg/errors"
	"tomodachi/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo   repository.UserRepository
	bus        *events.Bus
	log        *logger.Logger
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, bus *events.Bus, log *logger.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		bus:        bus,
		log:        log,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * 24 * time.Hour,
	}
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Identity string
	Password string
}

type RefreshInput struct {
	SessionID    string
	RefreshToken string
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int64        `json:"expires_in"`
	SessionID    string       `json:"session_id"`
	User         user.Profile `json:"user"`
}

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	// Username is the search key: lowercased here, immutable afterwards.
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validateRegister(in); err != nil {
		return AuthResponse{}, err
	}

	if err := s.ensureIdentityAvailable(ctx, in); err != nil {
		return AuthResponse{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return AuthResponse{}, err
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}

	newUser := &user.User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return AuthResponse{}, err
	}

	s.announceRegistered(ctx, newUser.ID)

	return s.issueSession(ctx, *newUser)
}

func (s *AuthService) announceRegistered(ctx context.Context, userID uuid.UUID) {
	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(events.EventTypeUserRegistered, events.AggregateTypeUser, userID.String(),
		events.UserPayload{UserID: userID.String()})
	if err != nil {
		s.log.Warnf("user.registered envelope failed for %s: %v", userID, err)
		return
	}
	if err := s.bus.Publish(ctx, env, events.ChannelUser(userID.String())); err != nil {
		s.log.Warnf("user.registered publish failed for %s: %v", userID, err)
	}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	if in.Identity == "" || in.Password == "" {
		return AuthResponse{}, tomodachi_errors.ErrInvalidInput
	}

	u, err := s.getUserByIdentity(ctx, strings.ToLower(strings.TrimSpace(in.Identity)))
	if err != nil {
		if errors.Is(err, tomodachi_errors.ErrNotFound) {
			// Do not leak which identities exist.
			return AuthResponse{}, tomodachi_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	if err := comparePassword(u.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, tomodachi_errors.ErrUnauthorized
	}

	return s.issueSession(ctx, u)
}

func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (AuthResponse, error) {
	if in.SessionID == "" || in.RefreshToken == "" {
		return AuthResponse{}, tomodachi_errors.ErrInvalidInput
	}

	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		return AuthResponse{}, tomodachi_errors.ErrInvalidInput
	}

	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return AuthResponse{}, err
	}

	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return AuthResponse{}, tomodachi_errors.ErrUnauthorized
	}

	if !s.compareRefreshToken(session.RefreshTokenHash, in.RefreshToken) {
		_ = s.userRepo.RevokeSession(ctx, session.ID)
		return AuthResponse{}, tomodachi_errors.ErrUnauthorized
	}

	newRefresh, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}

	session.RefreshTokenHash = s.hashRefreshToken(newRefresh)
	session.ExpiresAt = time.Now().Add(s.refreshTTL)

	if err := s.userRepo.UpdateSession(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(session.UserID, session.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	u, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    expiresIn,
		SessionID:    session.ID.String(),
		User:         u.ToProfile(),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return tomodachi_errors.ErrInvalidInput
	}
	parsedID, err := uuid.Parse(sessionID)
	if err != nil {
		return tomodachi_errors.ErrInvalidInput
	}
	return s.userRepo.RevokeSession(ctx, parsedID)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.RevokeAllUserSessions(ctx, userID)
}

// VerifyCredential re-checks the password for destructive operations such as
// account deletion.
func (s *AuthService) VerifyCredential(ctx context.Context, userID uuid.UUID, password string) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := comparePassword(u.PasswordHash, password); err != nil {
		return tomodachi_errors.ErrUnauthorized
	}
	return nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, tomodachi_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, tomodachi_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, tomodachi_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, tomodachi_errors.ErrUnauthorized
	}

	return *claims, nil
}

func (s *AuthService) ValidateSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) (user.UserSession, error) {
	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return user.UserSession{}, err
	}
	if session.UserID != userID {
		return user.UserSession{}, tomodachi_errors.ErrUnauthorized
	}
	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return user.UserSession{}, tomodachi_errors.ErrUnauthorized
	}
	return session, nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, tomodachi_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, tomodachi_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, tomodachi_errors.ErrForbidden):
		return 403
	case errors.Is(err, tomodachi_errors.ErrNotFound):
		return 404
	case errors.Is(err, tomodachi_errors.ErrAlreadyExists), errors.Is(err, tomodachi_errors.ErrConflict):
		return 409
	case errors.Is(err, tomodachi_errors.ErrTooLarge):
		return 413
	case errors.Is(err, tomodachi_errors.ErrUnsupportedMedia):
		return 415
	case errors.Is(err, tomodachi_errors.ErrImmutableField):
		return 422
	case errors.Is(err, tomodachi_errors.ErrRateLimited):
		return 429
	case errors.Is(err, tomodachi_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var sessionIDKey ctxKey = "session_id"

func WithUserSessionContext(ctx context.Context, userID, sessionID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(sessionIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	sessionID, ok := value.(uuid.UUID)
	return sessionID, ok
}

func (s *AuthService) issueSession(ctx context.Context, u user.User) (AuthResponse, error) {
	refreshToken, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}

	createdAt := time.Now()
	session := &user.UserSession{
		ID:               uuid.New(),
		UserID:           u.ID,
		RefreshTokenHash: s.hashRefreshToken(refreshToken),
		ExpiresAt:        createdAt.Add(s.refreshTTL),
		CreatedAt:        createdAt,
	}

	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(u.ID, session.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		SessionID:    session.ID.String(),
		User:         u.ToProfile(),
	}, nil
}

func (s *AuthService) ensureIdentityAvailable(ctx context.Context, in RegisterInput) error {
	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return tomodachi_errors.ErrAlreadyExists
	} else if !errors.Is(err, tomodachi_errors.ErrNotFound) {
		return err
	}

	if _, err := s.userRepo.GetByUsername(ctx, in.Username); err == nil {
		return tomodachi_errors.ErrAlreadyExists
	} else if !errors.Is(err, tomodachi_errors.ErrNotFound) {
		return err
	}

	return nil
}

func (s *AuthService) getUserByIdentity(ctx context.Context, identity string) (user.User, error) {
	if identity == "" {
		return user.User{}, tomodachi_errors.ErrInvalidInput
	}

	if strings.Contains(identity, "@") {
		u, err := s.userRepo.GetByEmail(ctx, identity)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, tomodachi_errors.ErrNotFound) {
			return user.User{}, err
		}
	}

	return s.userRepo.GetByUsername(ctx, identity)
}

func (s *AuthService) newAccessToken(userID, sessionID uuid.UUID) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

func (s *AuthService) hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) compareRefreshToken(hash, token string) bool {
	computed := s.hashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

func validateRegister(in RegisterInput) error {
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return tomodachi_errors.ErrInvalidInput
	}
	if !usernameRe.MatchString(in.Username) {
		return tomodachi_errors.ErrInvalidInput
	}
	if len(in.Password) < 8 {
		return tomodachi_errors.ErrInvalidInput
	}
	if !strings.Contains(in.Email, "@") {
		return tomodachi_errors.ErrInvalidInput
	}
	return nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
