package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/saadkhi/Side/internal/chat"
	apperrors "github.com/saadkhi/Side/internal/errors"
)

const replHelp = `Type a question to send it. Commands:
  /new          start a new conversation
  /list         list conversations
  /open <id>    open a conversation
  /delete <id>  delete a conversation
  /quit         leave
`

// repl runs the interactive chat until /quit, end of input or ctx is done.
func (a *app) repl(ctx context.Context) error {
	view := chat.NewView(a.chat, a.policy)
	if err := view.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprint(a.out, replHelp)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.out, "> ")
		if !a.in.Scan() {
			fmt.Fprintln(a.out)
			return a.in.Err()
		}

		line := strings.TrimSpace(a.in.Text())
		if !strings.HasPrefix(line, "/") {
			if err := a.send(ctx, view, line); err != nil {
				return err
			}
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/quit", "/exit":
			return nil
		case "/new":
			view.NewChat()
			fmt.Fprintln(a.out, "Started a new conversation.")
		case "/list":
			if err := view.Refresh(ctx); err != nil {
				a.banner(errorText(err))
				continue
			}
			a.printConversations(view.Conversations())
		case "/open":
			id, err := parseID(fields[1:])
			if err != nil {
				a.banner(errorText(err))
				continue
			}
			if err := view.Select(ctx, id); err != nil {
				a.banner(view.Banner())
				continue
			}
			a.printMessages(view.Messages())
		case "/delete":
			id, err := parseID(fields[1:])
			if err != nil {
				a.banner(errorText(err))
				continue
			}
			if err := view.Delete(ctx, id); err != nil {
				a.banner(view.Banner())
				continue
			}
			fmt.Fprintf(a.out, "Deleted conversation %d.\n", id)
		case "/help":
			fmt.Fprint(a.out, replHelp)
		default:
			a.banner(fmt.Sprintf("unknown command %s", fields[0]))
		}
	}
}

// send submits one message. Only an expired session ends the chat; other
// failures are shown and the prompt continues.
func (a *app) send(ctx context.Context, view *chat.View, text string) error {
	sent, err := view.Submit(ctx, text)
	if !sent {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrCodeSessionExpired) {
		return err
	}
	if err != nil {
		a.banner(view.Banner())
		return nil
	}
	msgs := view.Messages()
	last := msgs[len(msgs)-1]
	fmt.Fprintf(a.out, "%s: %s\n\n", speaker(last.Role), last.Content)
	return nil
}

func (a *app) banner(msg string) {
	fmt.Fprintf(a.errOut, "! %s\n", msg)
}
