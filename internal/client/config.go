// Package client はMemoriaアプリケーションコアを1プロセス分組み立てる。
package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAPIURL はMEMORIA_API_URL未設定時の接続先。
const DefaultAPIURL = "http://localhost:8080"

// Config はクライアントの設定。
type Config struct {
	// APIURL はプラットフォームサーバーのベースURL。
	APIURL string
	// StateDir はセッションファイルと現在パスを保存するディレクトリ。
	StateDir string
	// RedirectURL はメール確認後の遷移先。
	RedirectURL string
	// EntryPath が空でなければ、保存済みの現在パスの代わりにこのパスから開始する。
	EntryPath string
}

// LoadConfig は環境変数からConfigを読み込む。
func LoadConfig() (Config, error) {
	cfg := Config{
		APIURL:      strings.TrimRight(os.Getenv("MEMORIA_API_URL"), "/"),
		StateDir:    os.Getenv("MEMORIA_STATE_DIR"),
		RedirectURL: os.Getenv("MEMORIA_REDIRECT_URL"),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, "memoria")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = cfg.APIURL + "/"
	}
	return cfg, nil
}
