// Package guard はプロフィール完成度の判定とルートガードを提供する。
package guard

import "strings"

// ルートパス。
const (
	PathHome           = "/"
	PathSignIn         = "/signin"
	PathSignUp         = "/signup"
	PathForgotPassword = "/forgot-password"
	PathSetup          = "/profile-setup"
	PathDashboard      = "/dashboard"
	PathTimeline       = "/timeline"
	PathProfile        = "/profile"
	PathFriends        = "/friends"
	PathSettings       = "/settings"
)

// RouteClass はルートガード上のパスの分類。
type RouteClass int

const (
	// Protected はセッション必須のパス。未知のパス(not found)もここに含む。
	Protected RouteClass = iota
	// Public はセッション無しで閲覧できるパス。
	Public
	// Setup はプロフィール設定のパス。
	Setup
)

// String はfmt.Stringerを実装する。
func (c RouteClass) String() string {
	switch c {
	case Public:
		return "PUBLIC"
	case Setup:
		return "SETUP"
	default:
		return "PROTECTED"
	}
}

var publicPaths = map[string]bool{
	PathHome:           true,
	PathSignIn:         true,
	PathSignUp:         true,
	PathForgotPassword: true,
}

// Classify はパスを分類する。クエリ文字列と末尾のスラッシュは無視する。
func Classify(path string) RouteClass {
	p := normalize(path)
	if publicPaths[p] {
		return Public
	}
	if p == PathSetup {
		return Setup
	}
	return Protected
}

// Route はルーティング表の1エントリ。
type Route string

const (
	RouteLanding        Route = "landing"
	RouteSignIn         Route = "signin"
	RouteSignUp         Route = "signup"
	RouteForgotPassword Route = "forgot-password"
	RouteDashboard      Route = "dashboard"
	RouteTimeline       Route = "timeline"
	RouteMemoryDetail   Route = "memory-detail"
	RouteProfile        Route = "profile"
	RouteProfileSetup   Route = "profile-setup"
	RouteFriends        Route = "friends"
	RouteSettings       Route = "settings"
	RouteNotFound       Route = "not-found"
)

var staticRoutes = map[string]Route{
	PathHome:           RouteLanding,
	PathSignIn:         RouteSignIn,
	PathSignUp:         RouteSignUp,
	PathForgotPassword: RouteForgotPassword,
	PathDashboard:      RouteDashboard,
	PathTimeline:       RouteTimeline,
	PathProfile:        RouteProfile,
	PathSetup:          RouteProfileSetup,
	PathFriends:        RouteFriends,
	PathSettings:       RouteSettings,
}

// Match はパスをルートとパラメータに解決する。該当しないパスはRouteNotFound。
func Match(path string) (Route, map[string]string) {
	p := normalize(path)
	if r, ok := staticRoutes[p]; ok {
		return r, nil
	}

	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(segs) == 2 && segs[1] != "" {
		switch segs[0] {
		case "memory":
			return RouteMemoryDetail, map[string]string{"id": segs[1]}
		case "profile":
			return RouteProfile, map[string]string{"id": segs[1]}
		}
	}
	return RouteNotFound, nil
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = PathHome
		}
	}
	return path
}
