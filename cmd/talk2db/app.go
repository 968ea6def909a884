package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/saadkhi/Side/internal/api"
	"github.com/saadkhi/Side/internal/chat"
	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/session"
)

const usage = `Usage: talk2db <command> [arguments]

Commands:
  login     [-username name] [-password pw]   log in
  register  -username -email [-first -last]   create an account and log in
  logout                                      log out and forget the session
  whoami                                      show the logged in user
  chat                                        interactive chat
  ask       [-c id] <message>                 send one message
  list                                        list conversations
  show      <id>                              print a conversation
  delete    <id>                              delete a conversation
`

const (
	notLoggedIn   = "Not logged in. Run `talk2db login` first."
	genericFailed = "Something went wrong. Please try again."
)

type app struct {
	store  *session.Store
	auth   *api.AuthService
	chat   *api.ChatService
	policy chat.FailurePolicy
	in     *bufio.Scanner
	out    io.Writer
	errOut io.Writer
}

func newApp(store *session.Store, requester api.Requester, failurePolicy string, in io.Reader, out, errOut io.Writer) *app {
	return &app{
		store:  store,
		auth:   api.NewAuthService(requester, store),
		chat:   api.NewChatService(requester),
		policy: chat.ParseFailurePolicy(failurePolicy),
		in:     bufio.NewScanner(in),
		out:    out,
		errOut: errOut,
	}
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "login":
		err = a.login(ctx, rest)
	case "register":
		err = a.register(ctx, rest)
	case "logout":
		err = a.logout(ctx)
	case "whoami":
		err = a.whoami(ctx)
	case "chat":
		err = a.requireLogin(ctx, func() error { return a.repl(ctx) })
	case "ask":
		err = a.requireLogin(ctx, func() error { return a.ask(ctx, rest) })
	case "list":
		err = a.requireLogin(ctx, func() error { return a.list(ctx) })
	case "show":
		err = a.requireLogin(ctx, func() error { return a.show(ctx, rest) })
	case "delete":
		err = a.requireLogin(ctx, func() error { return a.delete(ctx, rest) })
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(a.errOut, errorText(err))
		return 1
	}
	return 0
}

// errorText picks the sentence shown for a failed command. Transport and
// server failures keep their own generic wording.
func errorText(err error) string {
	if apperrors.Is(err, apperrors.ErrCodeNetwork) || apperrors.Is(err, apperrors.ErrCodeServer) {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Message != "" {
			return appErr.Message
		}
	}
	return apperrors.UserMessage(err, genericFailed)
}

func (a *app) requireLogin(ctx context.Context, fn func() error) error {
	if !a.store.IsAuthenticated(ctx) {
		return apperrors.Unauthorized(notLoggedIn)
	}
	return fn()
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return apperrors.InvalidInput("arguments", err.Error())
	}

	if *username == "" {
		*username = a.prompt("Username: ")
	}
	if *password == "" {
		*password = a.prompt("Password: ")
	}

	user, err := a.auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", user.Username)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	var req model.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "username")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Password, "password", "", "password")
	fs.StringVar(&req.PasswordConfirm, "confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return apperrors.InvalidInput("arguments", err.Error())
	}

	if req.Username == "" {
		req.Username = a.prompt("Username: ")
	}
	if req.Email == "" {
		req.Email = a.prompt("Email: ")
	}
	if req.Password == "" {
		req.Password = a.prompt("Password: ")
	}
	if req.PasswordConfirm == "" {
		req.PasswordConfirm = a.prompt("Confirm password: ")
	}

	user, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s. You are logged in.\n", user.Username)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	user, err := a.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		fmt.Fprintf(a.out, "%s <%s>\n", user.Username, user.Email)
	} else {
		fmt.Fprintf(a.out, "%s (%s) <%s>\n", user.Username, name, user.Email)
	}
	return nil
}

func (a *app) ask(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	id := fs.Int64("c", 0, "conversation id to continue")
	if err := fs.Parse(args); err != nil {
		return apperrors.InvalidInput("arguments", err.Error())
	}

	var conversationID *int64
	if *id != 0 {
		conversationID = id
	}

	resp, err := a.chat.Send(ctx, strings.Join(fs.Args(), " "), conversationID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, resp.Response)
	fmt.Fprintf(a.out, "\n(conversation %d)\n", resp.ConversationID)
	return nil
}

func (a *app) list(ctx context.Context) error {
	convs, err := a.chat.Conversations(ctx)
	if err != nil {
		return err
	}
	a.printConversations(convs)
	return nil
}

func (a *app) printConversations(convs []model.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(a.out, "No conversations yet.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.DisplayTitle(), c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	detail, err := a.chat.Conversation(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "# %s\n\n", detail.DisplayTitle())
	a.printMessages(detail.Messages)
	return nil
}

func (a *app) printMessages(msgs []model.Message) {
	for _, m := range msgs {
		fmt.Fprintf(a.out, "%s: %s\n\n", speaker(m.Role), m.Content)
	}
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.chat.DeleteConversation(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted conversation %d.\n", id)
	return nil
}

func (a *app) prompt(label string) string {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, apperrors.MissingRequired("conversation id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("conversation id", "must be a positive number")
	}
	return id, nil
}

func speaker(role model.Role) string {
	if role == model.RoleUser {
		return "You"
	}
	return "talk2db"
}
