package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/friends"
	"github.com/hitoshi/memoria/internal/client/guard"
	"github.com/hitoshi/memoria/internal/client/lifecycle"
	"github.com/hitoshi/memoria/internal/client/memories"
	"github.com/hitoshi/memoria/internal/client/notice"
	"github.com/hitoshi/memoria/internal/client/profiles"
	"github.com/hitoshi/memoria/internal/client/session"
)

// PathFileName は現在パスを保存するファイル名。
const PathFileName = "current-path"

// App は1プロセスにつき1つのSession Storeと、それを共有する各コンポーネントを保持する。
type App struct {
	cfg Config
	out io.Writer

	API        *api.Client
	Provider   *api.Provider
	Store      *session.Store
	Profiles   *profiles.Service
	Gate       *guard.Gate
	Controller *lifecycle.Controller
	Friends    *friends.Manager
	Memories   *memories.Access

	closeOnce sync.Once
}

// New はAppを組み立てる。通知と遷移先はoutに出力する。
func New(cfg Config, out io.Writer) (*App, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	notices := NewPrinter(out)
	client := api.NewClient(cfg.APIURL, nil)
	provider := api.NewProvider(client, filepath.Join(cfg.StateDir, api.SessionFileName))
	store := session.NewStore(provider)
	profileSvc := profiles.NewService(client, notices)
	gate := guard.NewGate(profileSvc)

	a := &App{
		cfg:      cfg,
		out:      out,
		API:      client,
		Provider: provider,
		Store:    store,
		Profiles: profileSvc,
		Gate:     gate,
		Friends:  friends.NewManager(client, store, notices),
		Memories: memories.NewAccess(client, notices),
	}

	a.Controller = lifecycle.New(lifecycle.Deps{
		Store:       store,
		Gate:        gate,
		Provider:    provider,
		Activity:    client,
		Notifier:    client,
		Profiles:    client,
		Inviter:     client,
		Navigator:   lifecycle.NavigatorFunc(a.navigate),
		Notices:     notices,
		Queue:       lifecycle.NewTaskQueue(),
		InitialPath: a.loadPath(),
		RedirectURL: cfg.RedirectURL,
	})
	return a, nil
}

// Start はセッションを復元し、現在パスの評価が終わるまで待つ。
func (a *App) Start(ctx context.Context) error {
	if err := a.Controller.Start(ctx); err != nil {
		slog.Warn("session restore failed", slog.String("error", err.Error()))
	}
	a.Controller.Wait()
	return nil
}

// Close はキュー上の副作用の完了を待ってから全コンポーネントを停止する。
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Controller.Close()
		a.Store.Close()
		a.Provider.Close()
	})
}

// Path は現在のパス。
func (a *App) Path() string {
	return a.Controller.Path()
}

// User はサインイン中のユーザー。
func (a *App) User() *session.User {
	return a.Store.CurrentUser()
}

func (a *App) navigate(path string) {
	fmt.Fprintf(a.out, "-> %s\n", path)
	if err := os.WriteFile(a.pathFile(), []byte(path+"\n"), 0o600); err != nil {
		slog.Warn("failed to persist current path", slog.String("error", err.Error()))
	}
}

func (a *App) loadPath() string {
	if a.cfg.EntryPath != "" {
		return a.cfg.EntryPath
	}
	data, err := os.ReadFile(a.pathFile())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read current path", slog.String("error", err.Error()))
		}
		return guard.PathHome
	}
	if p := strings.TrimSpace(string(data)); p != "" {
		return p
	}
	return guard.PathHome
}

func (a *App) pathFile() string {
	return filepath.Join(a.cfg.StateDir, PathFileName)
}

// Printer は通知を1行ずつ書き出すnotice.Sink。
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter はPrinterを生成する。
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Notify はnotice.Sinkを実装する。
func (p *Printer) Notify(n notice.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.Description == "" {
		fmt.Fprintf(p.out, "[%s] %s\n", n.Kind, n.Title)
		return
	}
	fmt.Fprintf(p.out, "[%s] %s: %s\n", n.Kind, n.Title, n.Description)
}
