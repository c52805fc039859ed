package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pairchat-server/internal/client"
	"github.com/vovakirdan/pairchat-server/internal/log"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

const help = `commands:
  /peers            list peers with unseen counts
  /open <username>  open a conversation
  /close            close the conversation
  /online           list online users
  /quit             exit
anything else is sent to the open conversation`

type options struct {
	server   string
	username string
	password string
	signup   bool
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Terminal client for pairchat-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, os.Stdin, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:5000", "server base URL")
	flags.StringVarP(&opts.username, "username", "u", "", "account username")
	flags.StringVarP(&opts.password, "password", "p", "", "account password")
	flags.BoolVar(&opts.signup, "signup", false, "create the account before logging in")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	logger := log.NewWithWriter(os.Stderr, opts.logLevel, "console")
	api := client.NewAPI(opts.server, 10*time.Second)

	var (
		auth *proto.AuthResponse
		err  error
	)
	if opts.signup {
		auth, err = api.Signup(ctx, proto.SignupRequest{Username: opts.username, Password: opts.password})
	} else {
		auth, err = api.Login(ctx, opts.username, opts.password)
	}
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	me := auth.UserData
	fmt.Fprintf(out, "logged in as %s (%s)\n%s\n", me.Username, me.ID, help)

	live, err := client.NewLiveChannel(opts.server, me.ID, auth.Token, logger)
	if err != nil {
		return err
	}
	notifier := client.NotifierFunc(func(err error) {
		fmt.Fprintf(out, "! %v\n", err)
	})
	session := client.NewSession(api, live, notifier, logger)
	defer session.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = live.Run(runCtx) }()
	go watch(runCtx, session, me.ID, out)

	if err := session.LoadPeers(ctx); err == nil {
		printPeers(out, session)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, session, out, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, s *client.Session, out io.Writer, line string) bool {
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return true
	case "/peers":
		if err := s.LoadPeers(ctx); err == nil {
			printPeers(out, s)
		}
	case "/online":
		fmt.Fprintf(out, "online: %s\n", strings.Join(s.OnlineUsers(), ", "))
	case "/close":
		s.Deselect()
	case "/open":
		peer, ok := findPeer(s, strings.TrimSpace(arg))
		if !ok {
			fmt.Fprintf(out, "! unknown peer %q, try /peers\n", arg)
			return false
		}
		if err := s.SelectPeer(ctx, peer.ID); err == nil {
			fmt.Fprintf(out, "-- %s --\n", peer.Username)
			for _, m := range s.Messages() {
				printMessage(out, m, peer.ID, peer.Username)
			}
		}
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintln(out, help)
			return false
		}
		if _, err := s.Send(ctx, line, ""); errors.Is(err, client.ErrNoPeerSelected) {
			fmt.Fprintln(out, "! open a conversation first")
		}
	}
	return false
}

func findPeer(s *client.Session, name string) (proto.User, bool) {
	for _, u := range s.Users() {
		if u.Username == name || u.ID == name {
			return u, true
		}
	}
	return proto.User{}, false
}

func printPeers(out io.Writer, s *client.Session) {
	unseen := s.Unseen()
	for _, u := range s.Users() {
		if n := unseen[u.ID]; n > 0 {
			fmt.Fprintf(out, "  %s (%d unseen)\n", u.Username, n)
		} else {
			fmt.Fprintf(out, "  %s\n", u.Username)
		}
	}
}

func printMessage(out io.Writer, m proto.Message, peerID, peerName string) {
	who := "you"
	if m.SenderID == peerID {
		who = peerName
	}
	body := m.Text
	if m.Image != "" {
		body = strings.TrimSpace(body + " [image " + m.Image + "]")
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, body)
}

// watch prints messages that arrive in the open conversation.
func watch(ctx context.Context, s *client.Session, me string, out io.Writer) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	var peer string
	printed := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		_, current := s.State()
		if current != peer {
			peer = current
			printed = make(map[string]bool)
			for _, m := range s.Messages() {
				printed[m.ID] = true
			}
			continue
		}
		if peer == "" {
			continue
		}
		for _, m := range s.Messages() {
			if printed[m.ID] || m.SenderID == me {
				printed[m.ID] = true
				continue
			}
			printed[m.ID] = true
			printMessage(out, m, peer, peerName(s, peer))
		}
	}
}

func peerName(s *client.Session, id string) string {
	if u, ok := findPeer(s, id); ok {
		return u.Username
	}
	return id
}
