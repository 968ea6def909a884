package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/config"
	apperrors "github.com/saadkhi/Side/internal/errors"
	"github.com/saadkhi/Side/internal/model"
)

const (
	SendFailedMessage   = "Failed to get a response from the server. Please check your connection and try again."
	LoadFailedMessage   = "Failed to load the conversation. Please try again."
	DeleteFailedMessage = "Failed to delete the conversation. Please try again."
)

// FailurePolicy decides what happens to an optimistically shown user message
// when sending it fails.
type FailurePolicy int

const (
	// RetainOnFailure keeps the message on screen next to the error banner.
	RetainOnFailure FailurePolicy = iota
	// RollbackOnFailure removes the message again.
	RollbackOnFailure
)

func ParseFailurePolicy(s string) FailurePolicy {
	if s == config.FailurePolicyRollback {
		return RollbackOnFailure
	}
	return RetainOnFailure
}

// Backend is the conversation API. *api.ChatService implements it.
type Backend interface {
	Send(ctx context.Context, message string, conversationID *int64) (*model.ChatResponse, error)
	Conversations(ctx context.Context) ([]model.Conversation, error)
	Conversation(ctx context.Context, id int64) (*model.ConversationDetail, error)
	DeleteConversation(ctx context.Context, id int64) error
}

// View holds the local chat state: the open conversation's messages, its id,
// the conversation list, the error banner and whether a send is in flight.
type View struct {
	mu            sync.Mutex
	backend       Backend
	policy        FailurePolicy
	messages      []model.Message
	currentID     int64
	conversations []model.Conversation
	banner        string
	loading       bool

	// gen changes whenever the open conversation changes. Responses that
	// arrive for an older gen are dropped.
	gen uint64
}

func NewView(backend Backend, policy FailurePolicy) *View {
	return &View{backend: backend, policy: policy}
}

// Submit sends text in the open conversation, or starts a new one. Blank text
// and submits while a send is in flight are ignored and report false.
func (v *View) Submit(ctx context.Context, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		return false, nil
	}
	v.loading = true
	v.banner = ""
	v.messages = append(v.messages, model.Message{Role: model.RoleUser, Content: text})
	optimistic := len(v.messages) - 1
	gen := v.gen
	var conversationID *int64
	if v.currentID != 0 {
		id := v.currentID
		conversationID = &id
	}
	v.mu.Unlock()

	resp, err := v.backend.Send(ctx, text, conversationID)

	v.mu.Lock()
	v.loading = false
	if v.gen != gen {
		v.mu.Unlock()
		return true, err
	}
	if err != nil {
		v.banner = apperrors.UserMessage(err, SendFailedMessage)
		if v.policy == RollbackOnFailure && optimistic < len(v.messages) {
			v.messages = append(v.messages[:optimistic], v.messages[optimistic+1:]...)
		}
		v.mu.Unlock()
		log.Debug().Err(err).Msg("chat message failed")
		return true, err
	}

	v.messages = append(v.messages, model.Message{Role: model.RoleAssistant, Content: resp.Response})
	started := v.currentID == 0
	if started {
		v.currentID = resp.ConversationID
	}
	v.mu.Unlock()

	if started {
		if err := v.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("could not reload conversations")
		}
	}
	return true, nil
}

// NewChat clears the open conversation so the next submit starts a new one.
func (v *View) NewChat() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = nil
	v.currentID = 0
	v.banner = ""
	v.gen++
}

// Select opens a conversation and loads its history.
func (v *View) Select(ctx context.Context, id int64) error {
	detail, err := v.backend.Conversation(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.banner = apperrors.UserMessage(err, LoadFailedMessage)
		return err
	}
	v.messages = append([]model.Message(nil), detail.Messages...)
	v.currentID = id
	v.banner = ""
	v.gen++
	return nil
}

// Delete removes a conversation. Deleting the open conversation also clears
// its messages and the selection.
func (v *View) Delete(ctx context.Context, id int64) error {
	if err := v.backend.DeleteConversation(ctx, id); err != nil {
		v.mu.Lock()
		v.banner = apperrors.UserMessage(err, DeleteFailedMessage)
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.conversations[:0]
	for _, c := range v.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	v.conversations = kept
	if v.currentID == id {
		v.currentID = 0
		v.messages = nil
		v.gen++
	}
	return nil
}

// Refresh reloads the conversation list.
func (v *View) Refresh(ctx context.Context) error {
	convs, err := v.backend.Conversations(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.conversations = convs
	v.mu.Unlock()
	return nil
}

func (v *View) Messages() []model.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Message(nil), v.messages...)
}

// CurrentID returns the open conversation id, zero when none is selected.
func (v *View) CurrentID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentID
}

func (v *View) Conversations() []model.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Conversation(nil), v.conversations...)
}

func (v *View) Banner() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.banner
}

func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}
