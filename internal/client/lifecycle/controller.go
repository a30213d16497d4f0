package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/guard"
	"github.com/hitoshi/memoria/internal/client/notice"
	"github.com/hitoshi/memoria/internal/client/session"
)

// 操作ログと通知の種別。
const (
	activitySignIn  = "signin"
	activitySignOut = "signout"

	notifySignIn   = "signin"
	notifySignUp   = "signup"
	notifyActivity = "activity"
	notifySetup    = "setup"
)

// MaxInvites はプロフィール設定時に招待できるメールアドレスの上限。
const MaxInvites = 5

// ErrNotSignedIn はセッションが必要な操作をセッション無しで呼んだ場合のエラー。
var ErrNotSignedIn = errors.New("not signed in")

// ValidationError はネットワーク呼び出し前の入力検証エラー。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// SessionStore はControllerが必要とするSession Storeのインターフェース。
type SessionStore interface {
	Start(ctx context.Context) error
	Subscribe(fn func(session.State)) (cancel func())
	Snapshot() session.State
	CurrentUser() *session.User
}

// CompletenessChecker はプロフィール完成度の判定。guard.Gateが実装する。
type CompletenessChecker interface {
	IsProfileComplete(ctx context.Context, userID string) bool
}

// ActivityRecorder は操作ログの書き込み。
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, userID, activityType string) error
}

// Notifier は管理者通知関数の呼び出し。
type Notifier interface {
	SendNotification(ctx context.Context, n api.Notification) error
}

// ProfileWriter はプロフィールの作成と更新。
type ProfileWriter interface {
	CreateProfile(ctx context.Context, in api.NewProfile) (*api.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch api.ProfilePatch) (*api.Profile, error)
}

// Inviter はプロフィール設定時の招待に使う検索とフレンドリクエスト送信。
type Inviter interface {
	SearchProfiles(ctx context.Context, query string, limit int) ([]api.Profile, error)
	SendFriendRequest(ctx context.Context, receiverID string) (*api.FriendRequest, error)
}

// Navigator は画面遷移の副作用。
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc は関数をNavigatorとして使うためのアダプタ。
type NavigatorFunc func(path string)

// Navigate はNavigatorを実装する。
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Deps はControllerの依存関係。
type Deps struct {
	Store     SessionStore
	Gate      CompletenessChecker
	Provider  session.Provider
	Activity  ActivityRecorder
	Notifier  Notifier
	Profiles  ProfileWriter
	Inviter   Inviter
	Navigator Navigator
	Notices   notice.Sink
	Queue     *TaskQueue

	// InitialPath は起動時の現在パス。空の場合は"/"。
	InitialPath string
	// RedirectURL はメール確認後の遷移先としてサインアップ時に渡すURL。
	RedirectURL string
}

// Controller はSession Store、Gate、Route Guardを組み合わせ、
// サインイン・サインアップ・サインアウトとそれに伴う副作用を1遷移につき1度だけ実行する。
type Controller struct {
	store     SessionStore
	gate      CompletenessChecker
	provider  session.Provider
	activity  ActivityRecorder
	notifier  Notifier
	profiles  ProfileWriter
	inviter   Inviter
	navigator Navigator
	notices   notice.Sink
	queue     *TaskQueue

	redirectURL string

	mu   sync.Mutex
	path string

	// busy は自身の操作が遷移先を決める間、セッション変化による再評価を止める。
	busy atomic.Int32

	unsubscribe func()
	closeOnce   sync.Once
}

// New はControllerを生成する。
func New(deps Deps) *Controller {
	path := deps.InitialPath
	if path == "" {
		path = guard.PathHome
	}
	notices := deps.Notices
	if notices == nil {
		notices = notice.Discard
	}
	queue := deps.Queue
	if queue == nil {
		queue = NewTaskQueue()
	}
	return &Controller{
		store:       deps.Store,
		gate:        deps.Gate,
		provider:    deps.Provider,
		activity:    deps.Activity,
		notifier:    deps.Notifier,
		profiles:    deps.Profiles,
		inviter:     deps.Inviter,
		navigator:   deps.Navigator,
		notices:     notices,
		queue:       queue,
		redirectURL: deps.RedirectURL,
		path:        path,
	}
}

// Start はSession Storeを購読してからセッションを復元する。
// 状態変化ごとにルートの再評価をキューに積む。コールバック内では評価しない。
func (c *Controller) Start(ctx context.Context) error {
	c.unsubscribe = c.store.Subscribe(func(st session.State) {
		c.queue.Enqueue(func(ctx context.Context) {
			c.onSessionChange(ctx, st)
		})
	})
	return c.store.Start(ctx)
}

// Path は現在のパスを返す。
func (c *Controller) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Wait はキューに積まれた副作用と再評価の完了を待つ。
func (c *Controller) Wait() {
	c.queue.Drain()
}

// Close は購読を解除し、キューを実行し終えてから停止する。
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.queue.Close()
	})
}

func (c *Controller) onSessionChange(ctx context.Context, st session.State) {
	if st.Loading || c.busy.Load() > 0 {
		return
	}
	if d := c.evaluate(ctx, c.Path()); d.Redirects() {
		c.moveTo(d.Target)
	}
}

// Navigate はルートガードを評価してから遷移し、最終的なパスを返す。
// セッションがあり保護パスへ遷移する場合はプロフィール完成度をその都度判定する。
func (c *Controller) Navigate(ctx context.Context, path string) string {
	if d := c.evaluate(ctx, path); d.Redirects() {
		path = d.Target
	}
	c.moveTo(path)
	return path
}

// evaluate はルートガードを評価し、判定に通知があれば表示する。
func (c *Controller) evaluate(ctx context.Context, path string) guard.Decision {
	st := c.store.Snapshot()
	in := guard.Input{Path: path, Loading: st.Loading, HasSession: st.Session != nil}
	if !st.Loading && st.Session != nil && guard.Classify(path) == guard.Protected {
		in.Completeness = guard.CompletenessOf(c.gate.IsProfileComplete(ctx, st.Session.User.ID))
	}

	d := guard.Decide(in)
	if d.Notice != nil {
		c.notices.Notify(*d.Notice)
	}
	return d
}

// moveTo は現在パスを更新してNavigatorに伝える。
func (c *Controller) moveTo(path string) {
	c.mu.Lock()
	c.path = path
	c.mu.Unlock()
	if c.navigator != nil {
		c.navigator.Navigate(path)
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
// 失敗はエラー通知として表示し、呼び出し元には返さない。
func (c *Controller) SignIn(ctx context.Context, email, password string) {
	c.busy.Add(1)
	defer c.busy.Add(-1)

	s, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		slog.Warn("sign in failed", slog.String("error", err.Error()))
		c.notices.Notify(notice.Error("Error signing in", messageOr(err, "An error occurred during sign in.")))
		return
	}

	user := s.User
	c.queue.Enqueue(func(ctx context.Context) {
		c.recordActivity(ctx, user, activitySignIn)
		c.notify(ctx, notifySignIn, user, "")
		c.notify(ctx, notifyActivity, user, "User signed in")
	})

	target := guard.PathDashboard
	if !c.gate.IsProfileComplete(ctx, user.ID) {
		target = guard.PathSetup
	}
	c.notices.Notify(notice.Success("Welcome back!", "You have successfully signed in."))
	c.moveTo(target)
}

// SignUp はユーザーを登録し、セッションが発行された場合はプロフィール行を作成する。
// メール確認待ちの場合、プロフィール行はCompleteSetupで作成する。
// エラーは通知として表示した上で呼び出し元にも返す。
func (c *Controller) SignUp(ctx context.Context, email, password, name string) error {
	c.busy.Add(1)
	defer c.busy.Add(-1)

	res, err := c.provider.SignUp(ctx, email, password, session.SignUpOptions{
		FullName:    name,
		RedirectURL: c.redirectURL,
	})
	if err != nil {
		slog.Warn("sign up failed", slog.String("error", err.Error()))
		c.notices.Notify(notice.Error("Error signing up", signUpErrorMessage(err)))
		return err
	}

	if res.User != nil {
		user := *res.User
		c.queue.Enqueue(func(ctx context.Context) {
			c.notify(ctx, notifySignUp, user, "")
		})
	}

	if res.Session != nil && res.User != nil {
		user := *res.User
		if _, err := c.profiles.CreateProfile(ctx, api.NewProfile{
			ID:       user.ID,
			FullName: name,
			Email:    email,
		}); err != nil {
			slog.Error("failed to create profile after sign up",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if res.Session == nil && res.User != nil {
		c.notices.Notify(notice.Info("Check your email", "Please check your email to confirm your account before signing in."))
		c.moveTo(guard.PathSignIn)
		return nil
	}
	c.notices.Notify(notice.Success("Account created!", "You've been successfully signed up and logged in."))
	c.moveTo(guard.PathSetup)
	return nil
}

// SignOut はサインアウトしてホームに遷移する。
// ユーザーが分かっている場合は、セッションが残っているうちに操作ログと通知を送る。
func (c *Controller) SignOut(ctx context.Context) {
	c.busy.Add(1)
	defer c.busy.Add(-1)

	if user := c.store.CurrentUser(); user != nil {
		c.recordActivity(ctx, *user, activitySignOut)
		c.notify(ctx, notifyActivity, *user, "User signed out")
	}

	if err := c.provider.SignOut(ctx); err != nil {
		slog.Warn("sign out failed", slog.String("error", err.Error()))
		c.notices.Notify(notice.Error("Error signing out", messageOr(err, "An error occurred during sign out.")))
	} else {
		c.notices.Notify(notice.Success("Signed out", "You have been successfully signed out."))
	}
	c.moveTo(guard.PathHome)
}

// SetupInput はプロフィール設定の入力。
type SetupInput struct {
	FullName     string
	Bio          string
	AvatarURL    string
	InviteEmails []string
}

// CompleteSetup はプロフィール設定を完了し、ダッシュボードに遷移する。
// 名前と自己紹介はネットワーク呼び出し前に検証する。
func (c *Controller) CompleteSetup(ctx context.Context, in SetupInput) error {
	user := c.store.CurrentUser()
	if user == nil {
		c.notices.Notify(notice.Error("Error", "Please sign in to continue."))
		return ErrNotSignedIn
	}

	name := strings.TrimSpace(in.FullName)
	bio := strings.TrimSpace(in.Bio)
	if name == "" {
		return c.invalid("full_name", "Please enter your name")
	}
	if bio == "" {
		return c.invalid("bio", "Please enter a short bio")
	}
	var invites []string
	for _, e := range in.InviteEmails {
		if e = strings.TrimSpace(e); e != "" {
			invites = append(invites, e)
		}
	}
	if len(invites) > MaxInvites {
		return c.invalid("invite_emails", "You can invite up to 5 friends")
	}

	patch := api.ProfilePatch{FullName: &name, Bio: &bio}
	if avatar := strings.TrimSpace(in.AvatarURL); avatar != "" {
		patch.AvatarURL = &avatar
	}
	if err := c.saveSetup(ctx, *user, patch); err != nil {
		slog.Error("failed to complete profile setup",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		c.notices.Notify(notice.Error("Error", messageOr(err, "Failed to update profile")))
		return err
	}

	for _, email := range invites {
		c.invite(ctx, email)
	}

	u := *user
	c.queue.Enqueue(func(ctx context.Context) {
		c.notify(ctx, notifySetup, u, "Profile setup completed")
	})

	c.notices.Notify(notice.Success("Profile Setup Complete", "Your profile has been set up successfully"))
	c.moveTo(guard.PathDashboard)
	return nil
}

// saveSetup はプロフィールを更新する。行が無い場合(確認メール経由のサインアップ)は作成する。
func (c *Controller) saveSetup(ctx context.Context, user session.User, patch api.ProfilePatch) error {
	_, err := c.profiles.UpdateProfile(ctx, user.ID, patch)
	if !api.IsNotFound(err) {
		return err
	}
	slog.Info("profile missing at setup, creating", slog.String("user_id", user.ID))
	in := api.NewProfile{
		ID:       user.ID,
		FullName: *patch.FullName,
		Email:    user.Email,
		Bio:      *patch.Bio,
	}
	if patch.AvatarURL != nil {
		in.AvatarURL = *patch.AvatarURL
	}
	_, err = c.profiles.CreateProfile(ctx, in)
	return err
}

func (c *Controller) invalid(field, message string) error {
	c.notices.Notify(notice.Error("Error", message))
	return &ValidationError{Field: field, Message: message}
}

// invite はプロフィールを持つ招待先にフレンドリクエストを送る。失敗はログのみ。
func (c *Controller) invite(ctx context.Context, email string) {
	if c.inviter == nil {
		return
	}
	found, err := c.inviter.SearchProfiles(ctx, email, 10)
	if err != nil {
		slog.Warn("failed to look up invitee", slog.String("email", email), slog.String("error", err.Error()))
		return
	}
	for _, p := range found {
		if strings.EqualFold(p.Email, email) {
			if _, err := c.inviter.SendFriendRequest(ctx, p.ID); err != nil {
				slog.Warn("failed to invite friend", slog.String("email", email), slog.String("error", err.Error()))
			}
			return
		}
	}
	slog.Info("invitee has no profile yet", slog.String("email", email))
}

func (c *Controller) recordActivity(ctx context.Context, user session.User, activityType string) {
	if c.activity == nil {
		return
	}
	if err := c.activity.RecordActivity(ctx, user.ID, activityType); err != nil {
		slog.Warn("failed to record activity",
			slog.String("user_id", user.ID),
			slog.String("activity_type", activityType),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) notify(ctx context.Context, notificationType string, user session.User, details string) {
	if c.notifier == nil {
		return
	}
	err := c.notifier.SendNotification(ctx, api.Notification{
		Type:    notificationType,
		User:    api.NotificationUser{Email: user.Email, ID: user.ID},
		Details: details,
	})
	if err != nil {
		slog.Warn("failed to send notification",
			slog.String("type", notificationType),
			slog.String("error", err.Error()),
		)
	}
}

// signUpErrorMessage はプロバイダのエラーメッセージを利用者向けの文言に変換する。
func signUpErrorMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "User already registered"):
		return "This email is already registered. Please sign in instead."
	case strings.Contains(msg, "Password should be"):
		return msg
	case strings.Contains(msg, "Invalid email"):
		return "Please enter a valid email address."
	}
	return messageOr(err, "An error occurred during sign up.")
}

func messageOr(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
