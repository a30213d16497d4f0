package guard

import "github.com/hitoshi/memoria/internal/client/notice"

// Completeness はプロフィール完成度の判定結果。
type Completeness int

const (
	// Unknown は判定していないことを表す。リダイレクトの根拠にはしない。
	Unknown Completeness = iota
	Complete
	Incomplete
)

// CompletenessOf は判定結果の真偽値をCompletenessに変換する。
func CompletenessOf(complete bool) Completeness {
	if complete {
		return Complete
	}
	return Incomplete
}

// Input はルートガードの評価入力。
type Input struct {
	Path         string
	Loading      bool
	HasSession   bool
	Completeness Completeness
}

// Action はルートガードの判定。
type Action int

const (
	Allow Action = iota
	Redirect
)

// Decision はルートガードの評価結果。RedirectのときTargetに遷移先が入る。
type Decision struct {
	Action Action
	Target string
	Notice *notice.Notice
}

// Redirects はリダイレクトを伴うかどうかを返す。
func (d Decision) Redirects() bool {
	return d.Action == Redirect
}

// Decide はパスとセッション状態から遷移可否を判定する。
// セッション解決前(Loading)は判定せずAllowを返す。
func Decide(in Input) Decision {
	if in.Loading {
		return Decision{Action: Allow}
	}

	class := Classify(in.Path)
	if !in.HasSession {
		if class == Protected {
			n := notice.Error("Authentication required", "Please sign in to access this page.")
			return Decision{Action: Redirect, Target: PathSignIn, Notice: &n}
		}
		return Decision{Action: Allow}
	}

	if class == Protected && in.Completeness == Incomplete {
		n := notice.Info("Complete your profile", "Please add your name and a short bio to continue.")
		return Decision{Action: Redirect, Target: PathSetup, Notice: &n}
	}
	return Decision{Action: Allow}
}
