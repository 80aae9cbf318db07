package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// Backend is the part of the daemon API the TUI uses.
type Backend interface {
	GetStatus(ctx context.Context) (*rpc.GetStatusResponse, error)
	ListContacts(ctx context.Context, query string) (*rpc.ListContactsResponse, error)
	AddContact(ctx context.Context, name, avatar string) (*rpc.ContactResponse, error)
	SelectContact(ctx context.Context, id string) (*rpc.ContactResponse, error)
	ListMessages(ctx context.Context, id string) (*rpc.ListMessagesResponse, error)
	SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error)
	Translate(ctx context.Context, req *rpc.TranslateRequest) (*rpc.TranslateResponse, error)
	Block(ctx context.Context, id string) error
	Unblock(ctx context.Context, id string) error
	ListBlocked(ctx context.Context) (*rpc.ListBlockedResponse, error)
	GetProfile(ctx context.Context) (*rpc.ProfileResponse, error)
	UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.ProfileResponse, error)
	WatchEvents(ctx context.Context, namespaces ...string) (grpc.ServerStreamingClient[rpc.Event], error)
	ListGroups(ctx context.Context) (*rpc.ListGroupsResponse, error)
	PostStory(ctx context.Context, req *rpc.PostStoryRequest) (*rpc.StoryResponse, error)
	ReplyStory(ctx context.Context, storyID, text string) (*rpc.ReplyStoryResponse, error)
	ViewStory(ctx context.Context, storyID string) (*rpc.ViewStoryResponse, error)
	StartCall(ctx context.Context, contactID string, kind types.CallKind) (*rpc.CallResponse, error)
	EndCall(ctx context.Context) (*rpc.CallResponse, error)
	GetCall(ctx context.Context) (*rpc.CallResponse, error)
	SetMuted(ctx context.Context, muted bool) (*rpc.CallResponse, error)
	SetVideoOff(ctx context.Context, off bool) (*rpc.CallResponse, error)
	Invite(ctx context.Context, contactID string) (*rpc.CallResponse, error)
}

// ErrNoContact is returned by actions that need an open conversation.
var ErrNoContact = errors.New("no conversation open")

// ViewModel caches daemon state and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client   Backend
	status   *rpc.GetStatusResponse
	contacts []types.Contact
	activeID string
	thread   *rpc.ListMessagesResponse
	groups   []types.StoryGroup
	call     types.CallState
	profile  types.Profile
	blocked  []types.Contact

	Flash *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Backend) *ViewModel {
	return &ViewModel{
		client:    c,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadAll fetches every cached slice once.
func (vm *ViewModel) LoadAll(ctx context.Context) error {
	return errors.Join(
		vm.LoadStatus(ctx),
		vm.LoadContacts(ctx),
		vm.LoadGroups(ctx),
		vm.LoadProfile(ctx),
		vm.LoadCall(ctx),
	)
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadContacts fetches the contact list and the active contact.
func (vm *ViewModel) LoadContacts(ctx context.Context) error {
	resp, err := vm.client.ListContacts(ctx, "")
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.contacts = resp.Contacts
	if resp.ActiveID != "" {
		vm.activeID = resp.ActiveID
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadThread fetches the messages of the open conversation.
func (vm *ViewModel) LoadThread(ctx context.Context) error {
	vm.mu.RLock()
	id := vm.activeID
	vm.mu.RUnlock()
	if id == "" {
		return nil
	}
	resp, err := vm.client.ListMessages(ctx, id)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activeID == id {
		vm.thread = resp
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadGroups fetches the story groups.
func (vm *ViewModel) LoadGroups(ctx context.Context) error {
	resp, err := vm.client.ListGroups(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.groups = resp.Groups
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadProfile fetches the profile and the blocked list.
func (vm *ViewModel) LoadProfile(ctx context.Context) error {
	p, err := vm.client.GetProfile(ctx)
	if err != nil {
		return err
	}
	b, err := vm.client.ListBlocked(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.profile = p.Profile
	vm.blocked = b.Contacts
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadCall fetches the call session state.
func (vm *ViewModel) LoadCall(ctx context.Context) error {
	resp, err := vm.client.GetCall(ctx)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

func (vm *ViewModel) setCall(st types.CallState) {
	vm.mu.Lock()
	vm.call = st
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Open selects a contact on the daemon and loads its conversation.
func (vm *ViewModel) Open(ctx context.Context, contactID string) error {
	if _, err := vm.client.SelectContact(ctx, contactID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.activeID = contactID
	vm.thread = nil
	vm.mu.Unlock()
	return errors.Join(vm.LoadThread(ctx), vm.LoadContacts(ctx))
}

// SendText sends text to the open conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	id := vm.ActiveID()
	if id == "" {
		return ErrNoContact
	}
	if _, err := vm.client.SendText(ctx, &rpc.SendTextRequest{ContactID: id, Text: text}); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// TranslateLast translates the newest contact message of the open
// conversation.
func (vm *ViewModel) TranslateLast(ctx context.Context, language string) (string, error) {
	id := vm.ActiveID()
	if id == "" {
		return "", ErrNoContact
	}
	msg, ok := LastReply(vm.Thread())
	if !ok {
		return "", errors.New("nothing to translate")
	}
	resp, err := vm.client.Translate(ctx, &rpc.TranslateRequest{ContactID: id, MessageID: msg.ID, Language: language})
	if err != nil {
		return "", err
	}
	return resp.Text, vm.LoadThread(ctx)
}

// ToggleBlock blocks the open contact, or unblocks it when already blocked.
func (vm *ViewModel) ToggleBlock(ctx context.Context) (bool, error) {
	id := vm.ActiveID()
	if id == "" {
		return false, ErrNoContact
	}
	blocked := vm.IsBlocked(id)
	var err error
	if blocked {
		err = vm.client.Unblock(ctx, id)
	} else {
		err = vm.client.Block(ctx, id)
	}
	if err != nil {
		return blocked, err
	}
	return !blocked, errors.Join(vm.LoadProfile(ctx), vm.LoadThread(ctx))
}

// Unblock removes a contact from the blocked list.
func (vm *ViewModel) Unblock(ctx context.Context, id string) error {
	if err := vm.client.Unblock(ctx, id); err != nil {
		return err
	}
	return vm.LoadProfile(ctx)
}

// AddContact creates a contact.
func (vm *ViewModel) AddContact(ctx context.Context, name string) (types.Contact, error) {
	resp, err := vm.client.AddContact(ctx, name, "")
	if err != nil {
		return types.Contact{}, err
	}
	return resp.Contact, vm.LoadContacts(ctx)
}

// UpdateProfile applies the non-nil fields.
func (vm *ViewModel) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) error {
	resp, err := vm.client.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.profile = resp.Profile
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// PostStory posts a story from a media path.
func (vm *ViewModel) PostStory(ctx context.Context, mediaURL, caption string) (types.Story, error) {
	resp, err := vm.client.PostStory(ctx, &rpc.PostStoryRequest{MediaURL: mediaURL, Caption: caption})
	if err != nil {
		return types.Story{}, err
	}
	return resp.Story, vm.LoadGroups(ctx)
}

// ReplyStory leaves a reply on a story.
func (vm *ViewModel) ReplyStory(ctx context.Context, storyID, text string) error {
	if _, err := vm.client.ReplyStory(ctx, storyID, text); err != nil {
		return err
	}
	return vm.LoadGroups(ctx)
}

// ViewStory records a view.
func (vm *ViewModel) ViewStory(ctx context.Context, storyID string) error {
	_, err := vm.client.ViewStory(ctx, storyID)
	return err
}

// StartCall calls the open contact.
func (vm *ViewModel) StartCall(ctx context.Context, kind types.CallKind) error {
	id := vm.ActiveID()
	if id == "" {
		return ErrNoContact
	}
	resp, err := vm.client.StartCall(ctx, id, kind)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

// EndCall hangs up.
func (vm *ViewModel) EndCall(ctx context.Context) error {
	resp, err := vm.client.EndCall(ctx)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

// ToggleMute flips outbound audio.
func (vm *ViewModel) ToggleMute(ctx context.Context) error {
	resp, err := vm.client.SetMuted(ctx, !vm.Call().Muted)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

// ToggleVideo flips outbound video.
func (vm *ViewModel) ToggleVideo(ctx context.Context) error {
	resp, err := vm.client.SetVideoOff(ctx, !vm.Call().VideoOff)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

// Invite adds a contact to the call's pending set.
func (vm *ViewModel) Invite(ctx context.Context, contactID string) error {
	resp, err := vm.client.Invite(ctx, contactID)
	if err != nil {
		return err
	}
	vm.setCall(resp.Call)
	return nil
}

// Watch follows the daemon event stream and reloads the affected slices
// until ctx is cancelled. A broken stream is re-opened after retry.
func (vm *ViewModel) Watch(ctx context.Context, retry time.Duration) {
	for {
		stream, err := vm.client.WatchEvents(ctx)
		if err == nil {
			_, err = stream.Header()
		}
		if err == nil {
			if vm.Flash.ClearSticky() {
				vm.Flash.Info("Reconnected")
				_ = vm.LoadAll(ctx)
			}
			for {
				var ev *rpc.Event
				ev, err = stream.Recv()
				if err != nil {
					break
				}
				vm.Apply(ctx, ev)
			}
		}
		if ctx.Err() != nil {
			return
		}
		vm.Flash.Sticky("Offline, reconnecting… (" + err.Error() + ")")
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Apply refreshes the cached state an event affects.
func (vm *ViewModel) Apply(ctx context.Context, ev *rpc.Event) {
	switch {
	case ev.Kind == bus.KindCallUpdated:
		var st types.CallState
		if err := json.Unmarshal(ev.Payload, &st); err != nil {
			_ = vm.LoadCall(ctx)
			return
		}
		vm.setCall(st)
	case strings.HasPrefix(ev.Kind, "call."):
		_ = vm.LoadCall(ctx)
	case strings.HasPrefix(ev.Kind, "story."):
		_ = vm.LoadGroups(ctx)
	case ev.Kind == bus.KindProfileChanged || ev.Kind == bus.KindBlockedChanged:
		_ = vm.LoadProfile(ctx)
		_ = vm.LoadThread(ctx)
	case strings.HasPrefix(ev.Kind, "message.") || strings.HasPrefix(ev.Kind, "state."):
		_ = vm.LoadContacts(ctx)
		_ = vm.LoadThread(ctx)
	}
}

// Status returns the last daemon status.
func (vm *ViewModel) Status() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Contacts returns a snapshot of the contact list.
func (vm *ViewModel) Contacts() []types.Contact {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.contacts
}

// ActiveID returns the open conversation's contact id.
func (vm *ViewModel) ActiveID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeID
}

// Thread returns the open conversation, or nil before it is loaded.
func (vm *ViewModel) Thread() *rpc.ListMessagesResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Groups returns the story groups, mine first.
func (vm *ViewModel) Groups() []types.StoryGroup {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.groups
}

// Call returns the call session state.
func (vm *ViewModel) Call() types.CallState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.call
}

// Profile returns the user profile.
func (vm *ViewModel) Profile() types.Profile {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.profile
}

// Blocked returns the blocked contacts.
func (vm *ViewModel) Blocked() []types.Contact {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.blocked
}

// IsBlocked reports whether id is on the blocked list.
func (vm *ViewModel) IsBlocked(id string) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.blocked {
		if c.ID == id {
			return true
		}
	}
	return false
}

// FindContact resolves a contact by id, exact name or name prefix, ignoring
// case.
func (vm *ViewModel) FindContact(query string) (types.Contact, bool) {
	return FindContact(vm.Contacts(), query)
}

// FindContact resolves query against contacts by id, then exact name, then
// name prefix.
func FindContact(contacts []types.Contact, query string) (types.Contact, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return types.Contact{}, false
	}
	for _, c := range contacts {
		if c.ID == query {
			return c, true
		}
	}
	for _, c := range contacts {
		if strings.ToLower(c.Name) == q {
			return c, true
		}
	}
	for _, c := range contacts {
		if strings.HasPrefix(strings.ToLower(c.Name), q) {
			return c, true
		}
	}
	return types.Contact{}, false
}

// LastReply returns the newest contact-authored message of a thread.
func LastReply(thread *rpc.ListMessagesResponse) (types.Message, bool) {
	if thread == nil {
		return types.Message{}, false
	}
	for i := len(thread.Messages) - 1; i >= 0; i-- {
		if m := thread.Messages[i]; m.Sender == types.SenderAI && m.Text != "" {
			return m, true
		}
	}
	return types.Message{}, false
}
