package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hitoshi/memoria/internal/client"
	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/friends"
	"github.com/hitoshi/memoria/internal/client/guard"
	"github.com/hitoshi/memoria/internal/client/lifecycle"
	"github.com/hitoshi/memoria/internal/client/memories"
	"github.com/hitoshi/memoria/internal/config"
	"github.com/hitoshi/memoria/internal/logger"
)

// ErrRedirected はルートガードによって要求したページから移動させられたことを表す。
var ErrRedirected = errors.New("redirected")

// entryPaths はクライアントコマンドが開くページ。空の場合は保存済みの現在パスから開始する。
var entryPaths = map[Command]string{
	CommandSignIn:   guard.PathSignIn,
	CommandSignUp:   guard.PathSignUp,
	CommandSetup:    guard.PathSetup,
	CommandSettings: guard.PathSettings,
	CommandAvatar:   guard.PathSettings,
	CommandFriends:  guard.PathFriends,
	CommandMemories: guard.PathTimeline,
}

// runClient はアプリケーションコアを組み立ててクライアントコマンドを1つ実行する。
func runClient(w io.Writer, cmd Command, args []string) error {
	if err := config.LoadDotEnv(DotEnvFile); err != nil {
		return err
	}
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger.SetupDefault(os.Stderr, logger.ParseLevel(level))

	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}
	cfg.EntryPath = entryPaths[cmd]
	if cmd == CommandLike && len(args) > 0 {
		cfg.EntryPath = "/memory/" + args[0]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := client.New(cfg, w)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}
	if cfg.EntryPath != "" && a.Path() != cfg.EntryPath {
		return fmt.Errorf("%w to %s", ErrRedirected, a.Path())
	}

	c := &clientCommand{app: a, out: w}
	switch cmd {
	case CommandSignIn:
		return c.signIn(ctx, args)
	case CommandSignUp:
		return c.signUp(ctx, args)
	case CommandSignOut:
		a.Controller.SignOut(ctx)
		return nil
	case CommandWhoami:
		return c.whoami()
	case CommandOpen:
		return c.open(ctx, args)
	case CommandSetup:
		return c.setup(ctx, args)
	case CommandSettings:
		return c.settings(ctx, args)
	case CommandAvatar:
		return c.avatar(ctx, args)
	case CommandFriends:
		return c.friends(ctx, args)
	case CommandMemories:
		return c.memories(ctx, args)
	case CommandLike:
		return c.like(ctx, args)
	}
	return fmt.Errorf("unknown command: %q", cmd)
}

type clientCommand struct {
	app *client.App
	out io.Writer
}

func (c *clientCommand) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *clientCommand) userID() (string, error) {
	u := c.app.User()
	if u == nil {
		return "", lifecycle.ErrNotSignedIn
	}
	return u.ID, nil
}

func (c *clientCommand) signIn(ctx context.Context, args []string) error {
	fs := c.flags("signin")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("MEMORIA_PASSWORD"), "password (or MEMORIA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.app.Controller.SignIn(ctx, *email, *password)
	if c.app.User() == nil {
		return errors.New("sign in failed")
	}
	return nil
}

func (c *clientCommand) signUp(ctx context.Context, args []string) error {
	fs := c.flags("signup")
	email := fs.String("email", "", "email address")
	password := fs.String("password", os.Getenv("MEMORIA_PASSWORD"), "password (or MEMORIA_PASSWORD)")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.app.Controller.SignUp(ctx, *email, *password, *name)
}

func (c *clientCommand) whoami() error {
	u := c.app.User()
	if u == nil {
		fmt.Fprintf(c.out, "not signed in (path %s)\n", c.app.Path())
		return nil
	}
	fmt.Fprintf(c.out, "%s <%s> (path %s)\n", u.ID, u.Email, c.app.Path())
	return nil
}

func (c *clientCommand) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: memoria open <path>")
	}
	path := c.app.Controller.Navigate(ctx, args[0])
	c.app.Controller.Wait()
	return c.render(ctx, path)
}

// render は遷移先のページ内容を出力する。
func (c *clientCommand) render(ctx context.Context, path string) error {
	route, params := guard.Match(path)
	switch route {
	case guard.RouteDashboard:
		id, err := c.userID()
		if err != nil {
			return err
		}
		list, err := c.app.Memories.List(ctx, id)
		if err != nil {
			return err
		}
		s := memories.ComputeStats(list)
		fmt.Fprintf(c.out, "memories: %d  locations: %d  emotions: %d  years: %d\n",
			s.Total, s.Locations, s.Emotions, s.TimelineYears)
		c.printMemories(list)
	case guard.RouteTimeline:
		id, err := c.userID()
		if err != nil {
			return err
		}
		list, err := c.app.Memories.List(ctx, id)
		if err != nil {
			return err
		}
		c.printTimeline(list)
	case guard.RouteMemoryDetail:
		m, err := c.app.Memories.Get(ctx, params["id"])
		if err != nil {
			return err
		}
		c.printMemory(m)
	case guard.RouteProfile:
		id := params["id"]
		if id == "" {
			var err error
			if id, err = c.userID(); err != nil {
				return err
			}
		}
		p, err := c.app.Profiles.Get(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(c.out, "profile not found")
			return nil
		}
		c.printProfile(p)
		list, err := c.app.Memories.List(ctx, id)
		if err != nil {
			return err
		}
		c.printMemories(list)
	case guard.RouteFriends:
		return c.printFriends(ctx)
	case guard.RouteSettings:
		return c.settings(ctx, nil)
	case guard.RouteNotFound:
		fmt.Fprintln(c.out, "404: page not found")
	}
	return nil
}

// stringList は繰り返し指定できる文字列フラグ。
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func (c *clientCommand) setup(ctx context.Context, args []string) error {
	fs := c.flags("setup")
	name := fs.String("name", "", "full name")
	bio := fs.String("bio", "", "short bio")
	avatarURL := fs.String("avatar-url", "", "avatar image URL")
	var invites stringList
	fs.Var(&invites, "invite", "email of a friend to invite (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.app.Controller.CompleteSetup(ctx, lifecycle.SetupInput{
		FullName:     *name,
		Bio:          *bio,
		AvatarURL:    *avatarURL,
		InviteEmails: invites,
	})
}

// optionalString はフラグが明示的に指定されたかどうかを区別する。
type optionalString struct {
	value string
	set   bool
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(v string) error {
	o.value, o.set = v, true
	return nil
}

func (o *optionalString) ptr() *string {
	if !o.set {
		return nil
	}
	return &o.value
}

func (c *clientCommand) settings(ctx context.Context, args []string) error {
	id, err := c.userID()
	if err != nil {
		return err
	}
	u := c.app.User()

	fs := c.flags("settings")
	var name, bio, location optionalString
	fs.Var(&name, "name", "full name")
	fs.Var(&bio, "bio", "short bio")
	fs.Var(&location, "location", "location")
	notifications := fs.String("email-notifications", "", "true or false")
	private := fs.String("private", "", "true or false")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := c.app.Profiles.EnsureProfile(ctx, id, u.Email, "")
	if err != nil {
		return err
	}

	patch := api.ProfilePatch{FullName: name.ptr(), Bio: bio.ptr(), Location: location.ptr()}
	if patch.EmailNotifications, err = parseOptionalBool(*notifications); err != nil {
		return err
	}
	if patch.IsPrivate, err = parseOptionalBool(*private); err != nil {
		return err
	}
	if patch != (api.ProfilePatch{}) {
		if p, err = c.app.Profiles.Update(ctx, id, patch); err != nil {
			return err
		}
	}
	c.printProfile(p)
	fmt.Fprintf(c.out, "email notifications: %t  private: %t\n", p.EmailNotifications, p.IsPrivate)
	return nil
}

func parseOptionalBool(v string) (*bool, error) {
	switch strings.ToLower(v) {
	case "":
		return nil, nil
	case "true", "yes", "on":
		b := true
		return &b, nil
	case "false", "no", "off":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", v)
}

func (c *clientCommand) avatar(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: memoria avatar <image file>")
	}
	id, err := c.userID()
	if err != nil {
		return err
	}
	url, err := c.app.Profiles.UploadAvatar(ctx, id, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, url)
	return nil
}

func (c *clientCommand) friends(ctx context.Context, args []string) error {
	if _, err := c.userID(); err != nil {
		return err
	}
	if len(args) == 0 || args[0] == "list" {
		return c.printFriends(ctx)
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: memoria friends %s <argument>", args[0])
	}
	mgr := c.app.Friends
	if err := mgr.Refresh(ctx); err != nil {
		return err
	}

	switch arg := strings.Join(args[1:], " "); args[0] {
	case "search":
		results, err := mgr.Search(ctx, arg)
		if err != nil {
			return err
		}
		for _, p := range results {
			fmt.Fprintf(c.out, "%s  %s <%s>\n", p.ID, p.FullName, p.Email)
		}
		return nil
	case "add":
		return mgr.SendRequest(ctx, arg)
	case "accept":
		return mgr.Respond(ctx, arg, true)
	case "reject":
		return mgr.Respond(ctx, arg, false)
	case "remove":
		return mgr.Remove(ctx, arg)
	case "cancel":
		return mgr.Cancel(ctx, arg)
	default:
		return fmt.Errorf("unknown friends command: %q", args[0])
	}
}

func (c *clientCommand) printFriends(ctx context.Context) error {
	mgr := c.app.Friends
	if err := mgr.Refresh(ctx); err != nil {
		return err
	}
	snap := mgr.Snapshot()
	sections := []struct {
		title   string
		entries []friends.Entry
	}{
		{"friends", snap.Friends},
		{"pending requests", snap.PendingIncoming},
		{"sent requests", snap.PendingOutgoing},
	}
	for _, s := range sections {
		fmt.Fprintf(c.out, "%s (%d)\n", s.title, len(s.entries))
		for _, e := range s.entries {
			fmt.Fprintf(c.out, "  %s  %s %s <%s>\n", e.RequestID, e.Profile.ID, e.Profile.FullName, e.Profile.Email)
		}
	}
	return nil
}

func (c *clientCommand) memories(ctx context.Context, args []string) error {
	id, err := c.userID()
	if err != nil {
		return err
	}
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	access := c.app.Memories

	switch sub {
	case "list", "stats", "timeline":
		fs := c.flags("memories " + sub)
		owner := fs.String("user", id, "owner user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list, err := access.List(ctx, *owner)
		if err != nil {
			return err
		}
		switch sub {
		case "stats":
			s := memories.ComputeStats(list)
			fmt.Fprintf(c.out, "memories: %d  locations: %d  emotions: %d  years: %d\n",
				s.Total, s.Locations, s.Emotions, s.TimelineYears)
		case "timeline":
			c.printTimeline(list)
		default:
			c.printMemories(list)
		}
		return nil
	case "add":
		fs := c.flags("memories add")
		var in api.NewMemory
		fs.StringVar(&in.Title, "title", "", "title")
		fs.StringVar(&in.Date, "date", "", "date (YYYY-MM-DD)")
		fs.StringVar(&in.Description, "description", "", "description")
		fs.StringVar(&in.Emotion, "emotion", "", "emotion")
		fs.StringVar(&in.Location, "location", "", "location")
		fs.StringVar(&in.ImageURL, "image-url", "", "image URL")
		fs.BoolVar(&in.IsPrivate, "private", false, "visible only to you")
		if err := fs.Parse(args); err != nil {
			return err
		}
		m, err := access.Create(ctx, in)
		if err != nil {
			return err
		}
		c.printMemory(m)
		return nil
	case "show", "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: memoria memories %s <id>", sub)
		}
		if sub == "delete" {
			return access.Delete(ctx, args[0])
		}
		m, err := access.Get(ctx, args[0])
		if err != nil {
			return err
		}
		c.printMemory(m)
		return nil
	default:
		return fmt.Errorf("unknown memories command: %q", sub)
	}
}

func (c *clientCommand) like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: memoria like <memory id>")
	}
	liked, err := c.app.Memories.ToggleLike(ctx, args[0])
	if err != nil {
		return err
	}
	if liked {
		fmt.Fprintln(c.out, "liked")
	} else {
		fmt.Fprintln(c.out, "unliked")
	}
	return nil
}

func (c *clientCommand) printProfile(p *api.Profile) {
	fmt.Fprintf(c.out, "%s <%s>\n", p.FullName, p.Email)
	if p.Bio != "" {
		fmt.Fprintf(c.out, "  %s\n", p.Bio)
	}
	if p.Location != "" {
		fmt.Fprintf(c.out, "  location: %s\n", p.Location)
	}
	if p.AvatarURL != "" {
		fmt.Fprintf(c.out, "  avatar: %s\n", p.AvatarURL)
	}
}

func (c *clientCommand) printMemory(m *api.Memory) {
	fmt.Fprintf(c.out, "%s  %s  %s\n", m.Date, m.Title, m.ID)
	for _, line := range []struct{ label, value string }{
		{"emotion", m.Emotion},
		{"location", m.Location},
		{"image", m.ImageURL},
		{"description", m.Description},
	} {
		if line.value != "" {
			fmt.Fprintf(c.out, "  %s: %s\n", line.label, line.value)
		}
	}
	if m.IsPrivate {
		fmt.Fprintln(c.out, "  private")
	}
}

func (c *clientCommand) printMemories(list []api.Memory) {
	for _, m := range list {
		fmt.Fprintf(c.out, "%s  %s  %s\n", m.Date, m.Title, m.ID)
	}
}

func (c *clientCommand) printTimeline(list []api.Memory) {
	for _, g := range memories.GroupByYear(list) {
		fmt.Fprintf(c.out, "%s\n", g.Year)
		for _, m := range g.Memories {
			fmt.Fprintf(c.out, "  %s  %s\n", m.Date, m.Title)
		}
	}
}
