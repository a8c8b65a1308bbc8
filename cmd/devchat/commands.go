package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devchat/devchat/client"
	"github.com/devchat/devchat/models"
)

const requestTimeout = 15 * time.Second

// printer serializes output from the REPL and the socket goroutine.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

// parseCommand splits "/cmd rest of line". Plain text returns an empty
// command and the whole line.
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	cmd, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

// session runs commands against a workspace. A line ending in a backslash
// starts or continues a multi-line draft; other users see us typing until
// the draft is sent or cancelled.
type session struct {
	ws    *client.Workspace
	out   *printer
	draft []string
}

// prompt is the label for the next input line.
func (s *session) prompt() string {
	if len(s.draft) > 0 {
		return "... "
	}
	if name := s.ws.View().Name; name != "" {
		return name + "> "
	}
	return "> "
}

func formatMessage(m models.Message) string {
	ts := m.Timestamp.Local().Format("15:04")
	if m.IsImage() {
		return fmt.Sprintf("[%s] %s: <image> %s", ts, m.User.Name, *m.Image)
	}
	var content string
	if m.Content != nil {
		content = *m.Content
	}
	return fmt.Sprintf("[%s] %s: %s", ts, m.User.Name, content)
}

// run executes one input line and reports whether the REPL should stop.
func (s *session) run(ctx context.Context, line string) (bool, error) {
	cmd, arg := parseCommand(line)
	if len(s.draft) > 0 && cmd != "/cancel" {
		cmd, arg = "", strings.TrimSpace(line)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch cmd {
	case "":
		if text, more := strings.CutSuffix(arg, `\`); more {
			s.draft = append(s.draft, strings.TrimSpace(text))
			return false, s.ws.NotifyTyping()
		}
		content := strings.TrimSpace(strings.Join(append(s.draft, arg), "\n"))
		s.draft = nil
		if content == "" {
			s.ws.StopTyping()
			return false, nil
		}
		_, err := s.ws.SendMessage(ctx, content)
		return false, err

	case "/cancel":
		if len(s.draft) > 0 {
			s.draft = nil
			s.out.printf("draft discarded")
		}
		s.ws.StopTyping()

	case "/quit", "/exit":
		return true, nil

	case "/channels":
		for _, item := range s.ws.Channels() {
			marker := " "
			if item.Active {
				marker = ">"
			}
			star := ""
			if item.Starred {
				star = " *"
			}
			unread := ""
			if item.Unread > 0 {
				unread = fmt.Sprintf(" (%d)", item.Unread)
			}
			s.out.printf("%s %s%s%s  %s", marker, item.Channel.DisplayName(), star, unread, item.Channel.Detail)
		}

	case "/join":
		channel, ok := s.ws.FindChannel(arg)
		if !ok {
			return false, fmt.Errorf("no channel named %q", arg)
		}
		return false, s.open(func() error { return s.ws.SelectChannel(channel.ID) })

	case "/new":
		name, detail, _ := strings.Cut(arg, " ")
		channel, err := s.ws.CreateChannel(ctx, name, strings.TrimSpace(detail))
		if err != nil {
			return false, err
		}
		s.out.printf("created %s", channel.DisplayName())

	case "/dm":
		peer, ok := s.ws.FindUser(arg)
		if !ok {
			return false, fmt.Errorf("no user named %q", arg)
		}
		return false, s.open(func() error { return s.ws.SelectDM(peer) })

	case "/star", "/unstar":
		view := s.ws.View()
		if (cmd == "/star") == s.ws.IsStarred(view.Key) {
			return false, nil
		}
		starred, err := s.ws.ToggleStar(ctx)
		if err != nil {
			return false, err
		}
		if starred {
			s.out.printf("starred %s", view.Name)
		} else {
			s.out.printf("unstarred %s", view.Name)
		}

	case "/search":
		results := s.ws.Search(arg)
		if len(results) == 0 {
			s.out.printf("no messages match %q", arg)
		}
		for _, m := range results {
			s.out.printf("%s", formatMessage(m))
		}

	case "/users":
		for _, peer := range s.ws.Peers() {
			s.out.printf("%s  %s", peer.DisplayName(), peer.Status)
		}

	case "/stats":
		stats := s.ws.Stats()
		s.out.printf("%d messages, %s", stats.MessageCount, stats.Label)
		for _, p := range stats.UserPosts {
			s.out.printf("  %s: %d", p.Name, p.Count)
		}

	case "/img":
		f, err := os.Open(arg)
		if err != nil {
			return false, err
		}
		defer f.Close()
		_, err = s.ws.SendImage(ctx, filepath.Base(arg), f)
		return false, err

	case "/avatar":
		f, err := os.Open(arg)
		if err != nil {
			return false, err
		}
		defer f.Close()
		if _, err := s.ws.UploadAvatar(ctx, filepath.Base(arg), f); err != nil {
			return false, err
		}
		s.out.printf("avatar updated")

	case "/color":
		colors := strings.Fields(arg)
		if len(colors) != 2 {
			return false, errors.New("usage: /color <primary> <secondary>")
		}
		theme, err := s.ws.SaveColor(ctx, colors[0], colors[1])
		if err != nil {
			return false, err
		}
		s.out.printf("saved colors %s %s", theme.Primary, theme.Secondary)

	case "/help":
		s.out.printf("/channels /join <name> /new <name> <detail> /dm <user> /star /unstar")
		s.out.printf("/search <term> /users /stats /img <file> /avatar <file> /color <primary> <secondary>")
		s.out.printf("end a line with \\ to keep writing (/cancel drops the draft)")
		s.out.printf("/quit")

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

// open switches the view and prints the header of the new channel.
func (s *session) open(selectFn func() error) error {
	if err := selectFn(); err != nil {
		return err
	}
	view := s.ws.View()
	s.out.printf("── %s ──", view.Name)
	if view.Channel != nil && view.Channel.Detail != "" {
		s.out.printf("%s", view.Channel.Detail)
	}
	return nil
}
