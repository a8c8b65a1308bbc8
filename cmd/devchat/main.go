// Command devchat is a terminal client for a DevChat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/devchat/devchat/client"
	"github.com/devchat/devchat/models"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	configPath := flag.String("config", defaultConfigPath(), "path to config.toml")
	registerFlag := flag.Bool("register", false, "create an account instead of signing in")
	flag.Parse()

	// ─── 1. Config ───
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("[devchat] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := openTerminal(filepath.Join(filepath.Dir(*configPath), "history"))
	err = run(ctx, cfg, term, *registerFlag)
	if closeErr := term.Close(); closeErr != nil {
		log.Printf("[devchat] terminal: %v", closeErr)
	}
	if err != nil {
		log.Fatalf("[devchat] %v", err)
	}
}

func run(ctx context.Context, cfg *Config, term *terminal, register bool) error {
	out := &printer{out: os.Stdout}

	// ─── 2. Sign in ───
	api := client.NewAPI(cfg.Server, nil)
	signInFn := signIn
	if register {
		signInFn = signUp
	}
	if err := signInFn(ctx, api, cfg, term, out); err != nil {
		if endOfInput(err) {
			return nil
		}
		return fmt.Errorf("sign in failed: %w", err)
	}
	me := api.CurrentUser()
	out.printf("signed in as %s", me.Username)

	// ─── 3. Realtime ───
	conn, err := client.Dial(ctx, api.SocketURL())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	typing := &typingLine{out: out}
	var workspace *client.Workspace
	workspace = client.NewWorkspace(api, conn, *me, client.Hooks{
		Message: func(m models.Message) { out.printf("%s", formatMessage(m)) },
		Changed: func() { typing.update(workspace.Typing()) },
	})
	conn.Start(workspace.Dispatch)
	if err := workspace.Start(); err != nil {
		conn.Close()
		return err
	}

	// ─── 4. REPL ───
	sess := &session{ws: workspace, out: out}
	next := make(chan string, 1)
	lines := make(chan string)
	go readLines(term, next, lines)

	out.printf("type /help for commands")
	next <- sess.prompt()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-conn.Done():
			log.Printf("[devchat] connection lost: %v", conn.Err())
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := sess.run(ctx, line)
			if err != nil {
				out.printf("error: %v", err)
			}
			if quit {
				break loop
			}
			next <- sess.prompt()
		}
	}
	close(next)

	// ─── 5. Shutdown ───
	if err := workspace.Close(); err != nil {
		log.Printf("[devchat] failed to unsubscribe: %v", err)
	}
	if err := conn.Close(); err != nil {
		log.Printf("[devchat] close: %v", err)
	}

	logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Logout(logoutCtx); err != nil {
		log.Printf("[devchat] logout: %v", err)
	}
	return nil
}

// signIn logs in with the configured credentials, prompting for whatever
// is missing. The password is read without echo. Answering /register at
// the email prompt creates an account instead.
func signIn(ctx context.Context, api *client.API, cfg *Config, in lineReader, out *printer) error {
	email, password := cfg.Email, cfg.Password
	var err error
	if email == "" {
		if email, err = ask(in, "email (or /register): "); err != nil {
			return err
		}
		if email == "/register" {
			return signUp(ctx, api, &Config{}, in, out)
		}
	}
	if password == "" {
		if password, err = in.PasswordPrompt("password: "); err != nil {
			return err
		}
	}

	req := models.LoginRequest{Email: email, Password: password}
	form := client.ValidateLogin(req)
	if form.Empty() {
		_, err = api.Login(ctx, req.Email, req.Password)
		form.Add(err)
	}
	return formFailure(form, out)
}

// signUp creates an account and signs in with it. Every failing field is
// listed before giving up.
func signUp(ctx context.Context, api *client.API, cfg *Config, in lineReader, out *printer) error {
	var req models.CreateUserRequest
	var err error
	if req.Username, err = ask(in, "username: "); err != nil {
		return err
	}
	req.Email = cfg.Email
	if req.Email == "" {
		if req.Email, err = ask(in, "email: "); err != nil {
			return err
		}
	}
	if req.Password, err = in.PasswordPrompt("password: "); err != nil {
		return err
	}
	if req.PasswordConfirmation, err = in.PasswordPrompt("confirm password: "); err != nil {
		return err
	}

	form := client.ValidateRegister(req)
	if form.Empty() {
		_, err = api.Register(ctx, req)
		form.Add(err)
	}
	return formFailure(form, out)
}

func formFailure(form *client.FormErrors, out *printer) error {
	if form.Empty() {
		return nil
	}
	msgs := form.Messages()
	for _, msg := range msgs {
		out.printf("  %s", msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// typingLine prints the typing indicator when the set of typing users
// changes.
type typingLine struct {
	mu   sync.Mutex
	last string
	out  *printer
}

func (t *typingLine) update(users []models.TypingUser) {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	line := strings.Join(names, ", ")

	t.mu.Lock()
	changed := line != t.last
	t.last = line
	t.mu.Unlock()

	if !changed || line == "" {
		return
	}
	if len(users) == 1 {
		t.out.printf("%s is typing...", line)
		return
	}
	t.out.printf("%s are typing...", line)
}
