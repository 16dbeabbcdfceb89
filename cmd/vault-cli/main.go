package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thevaultgame/vault-auth-client/api"
	"github.com/thevaultgame/vault-auth-client/credentials"
	"github.com/thevaultgame/vault-auth-client/credentials/filestore"
	"github.com/thevaultgame/vault-auth-client/credentials/redisstore"
	"github.com/thevaultgame/vault-auth-client/guard"
	"github.com/thevaultgame/vault-auth-client/internal/config"
	"github.com/thevaultgame/vault-auth-client/internal/utils"
	"github.com/thevaultgame/vault-auth-client/session"
)

const appName = "Vault CLI"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Log.Level)

	displayAppname(appName)

	store := buildStore(cfg)
	client := api.NewClient(cfg.API.BaseURL, api.WithLogger(logger))
	manager, err := session.NewManager(store, client,
		session.WithLogger(logger),
		session.WithHTTPTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return errors.Wrap(err, "failed to build session manager")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout+5*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		return cmdLogin(ctx, manager, args[1:])
	case "register":
		return cmdRegister(ctx, manager, args[1:])
	case "logout":
		return manager.Logout(ctx)
	case "whoami":
		return cmdWhoami(ctx, manager, store)
	case "profile":
		return cmdProfile(ctx, manager, args[1:])
	case "forgot-password":
		return cmdForgotPassword(ctx, manager, args[1:])
	case "status":
		return cmdStatus(store)
	default:
		usage()
		return errors.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vault-cli [--config path] <command>")
	fmt.Fprintln(os.Stderr, "commands: login, register, logout, whoami, profile <user-id>, forgot-password <email>, status")
}

func cmdLogin(ctx context.Context, manager *session.Manager, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("u", "", "username or email")
	password := fs.String("p", "", "password")
	remember := fs.Bool("remember", false, "request a long-lived session")
	_ = fs.Parse(args)

	if *user == "" || *password == "" {
		return errors.New("login requires -u and -p")
	}

	resp, err := manager.Login(ctx, api.LoginRequest{
		UsernameOrEmail: *user,
		Password:        *password,
		RememberMe:      *remember,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", resp.Username, resp.Role)
	return nil
}

func cmdRegister(ctx context.Context, manager *session.Manager, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	fullName := fs.String("name", "", "full name (optional)")
	role := fs.String("role", "", "requested role (optional)")
	_ = fs.Parse(args)

	if *email == "" || *username == "" || *password == "" {
		return errors.New("register requires -email, -u and -p")
	}

	req := api.RegisterRequest{Email: *email, Username: *username, Password: *password}
	if *fullName != "" {
		req.FullName = utils.Ptr(*fullName)
	}
	if *role != "" {
		req.Role = utils.Ptr(*role)
	}

	resp, err := manager.Register(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s (%s)\n", resp.Username, resp.Role)
	return nil
}

func cmdWhoami(ctx context.Context, manager *session.Manager, store credentials.Store) error {
	if decision := guard.New(store).CanEnter(); !decision.Allowed {
		return errors.New("not logged in")
	}

	user, err := manager.FetchCurrentUser(ctx)
	if err != nil {
		return err
	}

	printUser(user)
	return nil
}

func cmdProfile(ctx context.Context, manager *session.Manager, args []string) error {
	if len(args) == 0 {
		return errors.New("profile requires a user id")
	}

	user, err := manager.FetchProfile(ctx, args[0])
	if err != nil {
		return err
	}

	printUser(user)
	return nil
}

func cmdForgotPassword(ctx context.Context, manager *session.Manager, args []string) error {
	if len(args) == 0 {
		return errors.New("forgot-password requires an email")
	}

	if err := manager.ForgotPassword(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Reset email requested")
	return nil
}

func cmdStatus(store credentials.Store) error {
	decision := guard.New(store).CanEnter()
	if decision.Allowed {
		sess, _ := store.Load()
		fmt.Printf("Logged in as %s (%s)\n", sess.Username, sess.Role)
	} else {
		fmt.Println("Not logged in")
	}
	return nil
}

func printUser(user *api.User) {
	fmt.Printf("%s <%s> role=%s verified=%t\n", user.Username, user.Email, user.Role, user.IsVerified)
	if name := utils.Value(user.FullName); name != "" {
		fmt.Printf("  name: %s\n", name)
	}
	fmt.Printf("  vault points: %d, wins: %d/%d (%.1f%%)\n", user.VaultPoints, user.TotalWins, user.WinGames, user.WinRate)
}

func buildStore(cfg *config.Config) credentials.Store {
	if cfg.Store.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		return redisstore.New(rdb)
	}

	var opts []filestore.Option
	if cfg.Store.Passphrase != "" {
		opts = append(opts, filestore.WithPassphrase(cfg.Store.Passphrase))
	}
	return filestore.New(cfg.Store.CredentialPath(), opts...)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
