package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// 以下はアプリケーションコアを操作するクライアントコマンド。
	CommandSignIn   Command = "signin"
	CommandSignUp   Command = "signup"
	CommandSignOut  Command = "signout"
	CommandOpen     Command = "open"
	CommandWhoami   Command = "whoami"
	CommandSetup    Command = "setup"
	CommandSettings Command = "settings"
	CommandAvatar   Command = "avatar"
	CommandFriends  Command = "friends"
	CommandMemories Command = "memories"
	CommandLike     Command = "like"

	// CommandUnknown はサポート外のコマンドを示す。
	CommandUnknown Command = ""
)

var clientCommands = map[Command]bool{
	CommandSignIn:   true,
	CommandSignUp:   true,
	CommandSignOut:  true,
	CommandOpen:     true,
	CommandWhoami:   true,
	CommandSetup:    true,
	CommandSettings: true,
	CommandAvatar:   true,
	CommandFriends:  true,
	CommandMemories: true,
	CommandLike:     true,
}

// IsClient はプラットフォームサーバーではなくクライアントとして動作するコマンドかどうかを返す。
func (c Command) IsClient() bool {
	return clientCommands[c]
}

// ParseCommand はコマンドライン引数からサブコマンドを解析し、残りの引数と共に返す。
// 引数が空の場合はCommandServe、サポート外のコマンドの場合はCommandUnknownを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	cmd := Command(args[0])
	switch cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck:
		return cmd, args[1:]
	}
	if cmd.IsClient() {
		return cmd, args[1:]
	}
	return CommandUnknown, args[1:]
}

const usage = `usage: memoria <command> [flags]

platform:
  serve | worker | healthcheck
  migrate   [up | down N]

client:
  signup    --email --password --name
  signin    --email --password
  signout
  whoami
  open      <path>
  setup     --name --bio [--avatar-url] [--invite email]...
  settings  [--name] [--bio] [--location] [--email-notifications=bool] [--private=bool]
  avatar    <image file>
  friends   [list | search <query> | add <user id> | accept <id> | reject <id> | remove <id> | cancel <id>]
  memories  [list [--user id] | add --title --date [...] | show <id> | delete <id> | stats | timeline]
  like      <memory id>
`
