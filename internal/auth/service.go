// Package auth はパスワード認証、セッション発行、トークンのリフレッシュを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/repository"
)

// ConfirmationSender はサインアップ確認メールの送信インターフェース。
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, to, link string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge            time.Duration // リフレッシュトークン(セッション)の有効期間
	RequireEmailConfirmation bool
	PasswordMinLength        int
	ConfirmationTTL          time.Duration
	BaseURL                  string // 確認リンクの生成に使う
}

// SignUpOptions はサインアップ時の付加情報。
type SignUpOptions struct {
	FullName   string
	RedirectTo string // メール確認後のリダイレクト先
}

// IssuedSession は発行済みセッションとトークンの組。
type IssuedSession struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // アクセストークンの有効期限
	User         *model.User
}

// Identity はアクセストークンから特定された呼び出し元。
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	confirmRepo repository.EmailConfirmationRepository
	mailer      ConfirmationSender
	tokens      *TokenIssuer
	hasher      PasswordHasher
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	confirmRepo repository.EmailConfirmationRepository,
	mailer ConfirmationSender,
	tokens *TokenIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = 6
	}
	if config.ConfirmationTTL <= 0 {
		config.ConfirmationTTL = 24 * time.Hour
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		confirmRepo: confirmRepo,
		mailer:      mailer,
		tokens:      tokens,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// SignUp はユーザーを登録する。
// メール確認が必要な設定の場合は確認メールを送信してセッションなしで返す。
// それ以外の場合は即座にセッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*model.User, *IssuedSession, error) {
	user, session, err := s.signUp(ctx, email, password, opts)
	s.recordEvent("signup", err)
	return user, session, err
}

func (s *Service) signUp(ctx context.Context, email, password string, opts SignUpOptions) (*model.User, *IssuedSession, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, nil, model.NewInvalidEmailError(email)
	}
	if len(password) < s.config.PasswordMinLength {
		return nil, nil, model.NewWeakPasswordError(s.config.PasswordMinLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewUserAlreadyRegisteredError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(opts.FullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !s.config.RequireEmailConfirmation {
		user.EmailConfirmedAt = &now
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, model.NewUserAlreadyRegisteredError()
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.Bool("confirmation_required", s.config.RequireEmailConfirmation),
	)

	if s.config.RequireEmailConfirmation {
		if err := s.sendConfirmation(ctx, user, opts.RedirectTo); err != nil {
			// ユーザーは作成済み。再送手段はないため記録のみ行う。
			slog.Error("failed to send confirmation email",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return user, nil, nil
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

func (s *Service) sendConfirmation(ctx context.Context, user *model.User, redirectTo string) error {
	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	now := s.now()
	c := &model.EmailConfirmation{
		Token:      token,
		UserID:     user.ID,
		RedirectTo: redirectTo,
		ExpiresAt:  now.Add(s.config.ConfirmationTTL),
		CreatedAt:  now,
	}
	if err := s.confirmRepo.Create(ctx, c); err != nil {
		return err
	}
	if s.mailer == nil {
		slog.Warn("no confirmation mailer configured", slog.String("user_id", user.ID))
		return nil
	}

	link := strings.TrimRight(s.config.BaseURL, "/") + "/auth/v1/confirm?token=" + url.QueryEscape(token)
	return s.mailer.SendConfirmation(ctx, user.Email, link)
}

// ConfirmEmail は確認トークンを消費してメールアドレスを確認済みにし、リダイレクト先を返す。
func (s *Service) ConfirmEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", model.NewInvalidConfirmationError()
	}
	c, err := s.confirmRepo.Consume(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to consume confirmation: %w", err)
	}
	if c == nil {
		return "", model.NewInvalidConfirmationError()
	}
	if err := s.userRepo.MarkEmailConfirmed(ctx, c.UserID, s.now()); err != nil {
		return "", fmt.Errorf("failed to confirm email: %w", err)
	}
	slog.Info("email confirmed", slog.String("user_id", c.UserID))
	return c.RedirectTo, nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインしてセッションを発行する。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*IssuedSession, error) {
	session, err := s.signIn(ctx, email, password)
	s.recordEvent("signin", err)
	return session, err
}

func (s *Service) signIn(ctx context.Context, email, password string) (*IssuedSession, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	if !user.Confirmed() {
		return nil, model.NewEmailNotConfirmedError()
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("user signed in", slog.String("user_id", user.ID), slog.String("session_id", session.SessionID))
	return session, nil
}

// Refresh はリフレッシュトークンをローテーションして新しいアクセストークンを発行する。
// 同じリフレッシュトークンで並行して呼ばれた場合、成功するのは1回のみ。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*IssuedSession, error) {
	session, err := s.refresh(ctx, refreshToken)
	s.recordEvent("refresh", err)
	return session, err
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (*IssuedSession, error) {
	if refreshToken == "" {
		return nil, model.NewInvalidRefreshTokenError()
	}
	current, err := s.sessionRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if current == nil {
		return nil, model.NewInvalidRefreshTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, current.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidRefreshTokenError()
	}

	next, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	now := s.now()
	rotated, err := s.sessionRepo.Rotate(ctx, current.ID, refreshToken, next, now.Add(s.config.SessionMaxAge), now)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	if !rotated {
		return nil, model.NewInvalidRefreshTokenError()
	}

	access, expiresAt, err := s.tokens.Issue(user.ID, user.Email, current.ID)
	if err != nil {
		return nil, err
	}
	return &IssuedSession{
		SessionID:    current.ID,
		AccessToken:  access,
		RefreshToken: next,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	err := s.sessionRepo.DeleteByID(ctx, sessionID)
	s.recordEvent("signout", err)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// Authenticate はアクセストークンを検証し、セッションが有効であることを確認する。
// サインアウト済みのセッションに紐づくトークンは期限内でも拒否する。
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}
	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, model.NewUnauthorizedError()
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, SessionID: claims.SessionID}, nil
}

// GetUser は指定IDのユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// issueSession はセッションを作成し永続化してトークンを発行する。
func (s *Service) issueSession(ctx context.Context, user *model.User) (*IssuedSession, error) {
	sessionID, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	refreshToken, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:           sessionID,
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.config.SessionMaxAge),
		CreatedAt:    now,
		RefreshedAt:  now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	access, expiresAt, err := s.tokens.Issue(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	return &IssuedSession{
		SessionID:    sessionID,
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *Service) recordEvent(event string, err error) {
	if err != nil {
		s.metrics.RecordAuthEvent(event, metrics.ResultFailure)
		return
	}
	s.metrics.RecordAuthEvent(event, metrics.ResultSuccess)
}

// randomToken は暗号的に安全な32バイトの乱数を16進文字列で返す。
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isValidEmail は@の前に1文字以上、@の後にドットを含むドメインがあるかを確認する。
func isValidEmail(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || strings.Count(email, "@") != 1 {
		return false
	}
	dot := strings.LastIndex(email, ".")
	return dot > at+1 && dot < len(email)-1
}
