// Package notice はユーザーに表示する一時的な通知(トースト)を扱う。
package notice

import "sync"

// Kind は通知の表示種別。
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notice はユーザー向けの通知1件。
type Notice struct {
	Kind        Kind
	Title       string
	Description string
}

// Info は情報通知を生成する。
func Info(title, description string) Notice {
	return Notice{Kind: KindInfo, Title: title, Description: description}
}

// Success は成功通知を生成する。
func Success(title, description string) Notice {
	return Notice{Kind: KindSuccess, Title: title, Description: description}
}

// Error はエラー通知を生成する。
func Error(title, description string) Notice {
	return Notice{Kind: KindError, Title: title, Description: description}
}

// Sink は通知の出力先。
type Sink interface {
	Notify(n Notice)
}

// SinkFunc は関数をSinkとして使うためのアダプタ。
type SinkFunc func(n Notice)

// Notify はSinkを実装する。
func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard は通知を捨てるSink。
var Discard Sink = SinkFunc(func(Notice) {})

// Recorder は受け取った通知を保持するSink。テストやCLIの後処理で使う。
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify はSinkを実装する。
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices は受け取った通知のコピーを返す。
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last は最後に受け取った通知を返す。無い場合はfalse。
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
