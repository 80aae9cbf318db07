package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/config"
	"github.com/matheus3301/bossmsg/internal/story"
	"github.com/matheus3301/bossmsg/internal/tui/keys"
	"github.com/matheus3301/bossmsg/internal/tui/model"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/tui/views"
	"github.com/matheus3301/bossmsg/internal/types"
)

const (
	pageChats   = "Chats"
	pageChat    = "Chat"
	pageInfo    = "Info"
	pageStatus  = "Status"
	pageStory   = "Story"
	pageCall    = "Call"
	pageProfile = "Profile"
	pageHelp    = "Help"
)

// Options tunes story playback.
type Options struct {
	Story         story.Options
	FrameInterval time.Duration
}

// OptionsFromConfig reads the [story] section. Zero values fall back to
// the viewer and player defaults.
func OptionsFromConfig(cfg config.StoryConfig) Options {
	return Options{
		Story: story.Options{
			ImageDuration:  cfg.ImageDuration.Duration,
			PressThreshold: cfg.PressThreshold.Duration,
		},
		FrameInterval: cfg.FrameInterval.Duration,
	}
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	registry *keys.Registry
	session  string
	opts     Options
	logger   *zap.Logger

	root        *tview.Flex
	header      *tview.Flex
	sessionInfo *ui.SessionInfo
	menu        *ui.Menu
	logo        *ui.Logo
	crumbs      *ui.Crumbs
	flash       *ui.FlashBar
	prompt      *ui.Prompt
	promptShown bool

	chatList    *views.ChatList
	thread      *views.MessageThread
	contactInfo *views.ContactInfo
	statusList  *views.StatusList
	storyView   *views.StoryView
	callView    *views.CallView
	profileView *views.ProfileView
	help        *views.HelpView

	// Story player state; touched only on the event loop.
	player       *story.Player
	holding      bool
	repliesShown bool
	lastViewed   string

	lastCallStatus types.CallStatus

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c model.Backend, sessionName string, opts Options, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		pages:       ui.NewPages(),
		vm:          model.NewViewModel(c),
		registry:    keys.NewRegistry(),
		session:     sessionName,
		opts:        opts,
		logger:      logger.Named("tui"),
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		logo:        ui.NewLogo(theme),
		crumbs:      ui.NewCrumbs(theme),
		flash:       ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		chatList:    views.NewChatList(theme),
		thread:      views.NewMessageThread(theme),
		contactInfo: views.NewContactInfo(theme),
		statusList:  views.NewStatusList(theme),
		storyView:   views.NewStoryView(theme),
		callView:    views.NewCallView(theme),
		profileView: views.NewProfileView(theme),
		help:        views.NewHelpView(theme),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	key := func(r rune, desc string, fn func()) *keys.Action {
		return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Visible: true, Handler: fn}
	}

	a.registry.AddGlobal(key(':', "Command", func() { a.showPrompt(ui.PromptCommand) }))
	a.registry.AddGlobal(key('?', "Help", func() { a.push(pageHelp) }))
	a.registry.AddGlobal(key('q', "Quit / Back", func() {
		if a.pages.Depth() > 1 {
			a.back()
			return
		}
		a.Stop()
	}))

	a.registry.AddView(pageChats, &keys.Action{Key: tcell.KeyEnter, Description: "Open", Visible: true, Handler: func() {
		if id := a.chatList.SelectedContact(); id != "" {
			a.openChat(id)
		}
	}})
	a.registry.AddView(pageChats, key('/', "Filter", func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddView(pageChats, key('n', "New contact", func() { a.showPrompt(ui.PromptAdd) }))
	a.registry.AddView(pageChats, key('s', "Status", func() { a.push(pageStatus) }))
	a.registry.AddView(pageChats, key('p', "Profile", func() { a.push(pageProfile) }))
	a.registry.AddView(pageChats, key('c', "Call", func() { a.showCall() }))
	a.registry.AddView(pageChats, &keys.Action{Key: tcell.KeyRune, Rune: '0', Label: "0", Description: "Clear filter", Visible: true, Numeric: true,
		Handler: func() { a.chatList.ClearFilter() }})
	for i := 1; i <= 9; i++ {
		n := i
		a.registry.AddView(pageChats, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n), Label: "1-9", Description: "Jump",
			Visible: n == 1, Numeric: true,
			Handler: func() {
				if id := a.chatList.ContactByIndex(n); id != "" {
					a.openChat(id)
				}
			},
		})
	}

	a.registry.AddView(pageChat, key('i', "Compose", func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageChat, key('t', "Translate", a.translateLast))
	a.registry.AddView(pageChat, key('b', "Block", a.toggleBlock))
	a.registry.AddView(pageChat, key('a', "Voice call", func() { a.startCall(types.CallAudio) }))
	a.registry.AddView(pageChat, key('v', "Video call", func() { a.startCall(types.CallVideo) }))
	a.registry.AddView(pageChat, key('d', "Info", func() { a.push(pageInfo) }))

	a.registry.AddView(pageStatus, &keys.Action{Key: tcell.KeyEnter, Description: "View", Visible: true, Handler: func() {
		if g, ok := a.statusList.SelectedGroup(); ok {
			a.openStory(g)
		}
	}})
	a.registry.AddView(pageStatus, key('n', "Post", func() { a.showPrompt(ui.PromptPost) }))

	a.registry.AddView(pageStory, &keys.Action{Key: tcell.KeyRune, Rune: ' ', Label: "Space", Description: "Hold", Visible: true, Handler: a.toggleHold})
	a.registry.AddView(pageStory, &keys.Action{Key: tcell.KeyLeft, Label: "←", Description: "Previous", Visible: true, Handler: func() { a.tapStory(story.SideLeft) }})
	a.registry.AddView(pageStory, &keys.Action{Key: tcell.KeyRight, Label: "→", Description: "Next", Visible: true, Handler: func() { a.tapStory(story.SideRight) }})
	a.registry.AddView(pageStory, key('r', "Reply", a.beginReply))
	a.registry.AddView(pageStory, key('R', "Replies", a.toggleReplies))

	a.registry.AddView(pageCall, key('m', "Mute", func() { a.do("mute", a.vm.ToggleMute) }))
	a.registry.AddView(pageCall, key('v', "Camera", func() { a.do("camera", a.vm.ToggleVideo) }))
	a.registry.AddView(pageCall, key('i', "Invite", func() { a.showPrompt(ui.PromptInvite) }))
	a.registry.AddView(pageCall, key('e', "End call", func() { a.do("end call", a.vm.EndCall) }))

	a.registry.AddView(pageProfile, key('e', "Edit name", func() { a.showPromptWith(ui.PromptName, a.vm.Profile().Name) }))
	a.registry.AddView(pageProfile, key('a', "Edit about", func() { a.showPromptWith(ui.PromptAbout, a.vm.Profile().About) }))
	a.registry.AddView(pageProfile, key('s', "Share code", func() {
		a.profileView.ToggleQR()
		a.profileView.Update(a.vm.Profile(), a.vm.Blocked())
	}))
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, _ int) {
		if id := a.chatList.ContactByIndex(row); id != "" {
			a.openChat(id)
		}
	})
	a.statusList.SetSelectedFunc(func(int, int) {
		if g, ok := a.statusList.SelectedGroup(); ok {
			a.openStory(g)
		}
	})
	a.profileView.Blocked().SetSelectedFunc(func(int, int) {
		if id := a.profileView.SelectedBlocked(); id != "" {
			a.do("unblock", func(ctx context.Context) error {
				if err := a.vm.Unblock(ctx, id); err != nil {
					return err
				}
				a.vm.Flash.Info("Contact unblocked")
				return nil
			})
		}
	})
	a.thread.SetOnSend(func(text string) {
		a.do("send", func(ctx context.Context) error { return a.vm.SendText(ctx, text) })
	})

	a.prompt.SetOnSubmit(a.onPrompt)
	a.prompt.SetOnCancel(a.onPromptCancel)

	a.pages.SetOnChange(func(current string, labels []string) {
		a.crumbs.Update(labels)
		a.menu.Update(a.registry.Hints(current))
	})
}

func (a *App) setupLayout() {
	a.pages.Register(
		a.chatList,
		a.thread,
		a.contactInfo,
		a.statusList,
		a.storyView,
		a.callView,
		a.profileView,
		a.help,
	)

	a.header = tview.NewFlex().
		AddItem(a.sessionInfo, 42, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 16, 0, false)

	a.root = tview.NewFlex().SetDirection(tview.FlexRow)
	a.layout()
	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)

	a.pages.Reset(pageChats)
	a.app.SetFocus(a.pages.Focus())
}

// layout rebuilds the root, with the prompt row while a prompt is shown.
func (a *App) layout() {
	a.root.Clear()
	a.root.AddItem(a.header, 7, 0, false)
	if a.promptShown {
		a.root.AddItem(a.prompt, 3, 0, true)
	}
	a.root.AddItem(a.pages.Pages, 0, 1, !a.promptShown)
	a.root.AddItem(a.crumbs, 1, 0, false)
	a.root.AddItem(a.flash, 1, 0, false)
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	if a.promptShown {
		return ev
	}

	// Let text input widgets handle all keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		if ev.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.pages.Focus())
			return nil
		}
		return ev
	}

	if ev.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

func (a *App) push(name string) {
	if a.pages.Current() == name {
		return
	}
	a.pages.Push(name)
	a.render()
	a.app.SetFocus(a.pages.Focus())
}

func (a *App) back() {
	if a.pages.Current() == pageStory {
		a.closeStory()
	}
	a.pages.Pop()
	a.app.SetFocus(a.pages.Focus())
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.showPromptWith(mode, "")
}

func (a *App) showPromptWith(mode ui.PromptMode, text string) {
	a.prompt.ActivateWith(mode, text)
	a.promptShown = true
	a.layout()
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptShown = false
	a.layout()
	a.app.SetFocus(a.pages.Focus())
}

func (a *App) onPromptCancel() {
	mode := a.prompt.Mode()
	a.hidePrompt()
	if mode == ui.PromptReply {
		a.setRepliesOpen(false)
	}
}

// do runs an RPC off the event loop and flashes its error.
func (a *App) do(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil && a.ctx.Err() == nil {
			a.logger.Warn("action failed", zap.String("action", what), zap.Error(err))
			a.vm.Flash.Err(fmt.Errorf("%s: %s", what, describe(err)))
		}
	}()
}

// describe strips the gRPC envelope from daemon errors.
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}

func (a *App) openChat(id string) {
	c, _ := model.FindContact(a.vm.Contacts(), id)
	a.thread.Reset(c)
	if !a.pages.PopTo(pageChat) {
		a.push(pageChat)
	}
	a.pages.Refresh()
	a.do("open chat", func(ctx context.Context) error { return a.vm.Open(ctx, id) })
}

func (a *App) translateLast() {
	a.vm.Flash.Info("Translating…")
	a.do("translate", func(ctx context.Context) error {
		if _, err := a.vm.TranslateLast(ctx, ""); err != nil {
			return err
		}
		a.vm.Flash.Info("Translated")
		return nil
	})
}

func (a *App) toggleBlock() {
	a.do("block", func(ctx context.Context) error {
		blocked, err := a.vm.ToggleBlock(ctx)
		if err != nil {
			return err
		}
		if blocked {
			a.vm.Flash.Warn("Contact blocked")
		} else {
			a.vm.Flash.Info("Contact unblocked")
		}
		return nil
	})
}

func (a *App) startCall(kind types.CallKind) {
	a.do("call", func(ctx context.Context) error {
		if err := a.vm.StartCall(ctx, kind); err != nil {
			return err
		}
		a.app.QueueUpdateDraw(func() { a.push(pageCall) })
		return nil
	})
}

func (a *App) showCall() {
	if !a.vm.Call().Active {
		a.vm.Flash.Warn("No call in progress")
		return
	}
	a.push(pageCall)
}

func (a *App) openStory(g types.StoryGroup) {
	if len(g.Stories) == 0 {
		a.vm.Flash.Warn("No stories to show")
		return
	}
	a.closeStory()

	v := story.NewViewer(g.Stories, 0, a.opts.Story, time.Now())
	var p *story.Player
	p = story.NewPlayer(v, a.opts.FrameInterval, func(f story.Frame) {
		a.app.QueueUpdateDraw(func() { a.onStoryFrame(p, f) })
	})
	a.player = p
	a.holding = false
	a.repliesShown = false
	a.lastViewed = ""
	a.storyView.SetShowReplies(false)

	a.push(pageStory)
	a.onStoryFrame(p, v.Frame())
	p.Start(a.ctx)
}

// onStoryFrame renders a frame of p, ignoring frames of replaced players.
func (a *App) onStoryFrame(p *story.Player, f story.Frame) {
	if a.player != p {
		return
	}
	if f.State == story.Closed {
		a.closeStory()
		if a.pages.Current() == pageStory {
			a.back()
		}
		return
	}
	if latest, ok := findStory(a.vm.Groups(), f.Story.ID); ok {
		latest.MediaDuration = f.Story.MediaDuration
		f.Story = latest
	}
	label := a.storyView.Label()
	a.storyView.Render(f)
	if a.storyView.Label() != label {
		a.pages.Refresh()
	}

	if id := f.Story.ID; id != a.lastViewed {
		a.lastViewed = id
		if f.Story.UserID != types.MyUserID {
			a.do("view", func(ctx context.Context) error { return a.vm.ViewStory(ctx, id) })
		}
	}
}

func (a *App) closeStory() {
	if a.player == nil {
		return
	}
	p := a.player
	a.player = nil
	a.holding = false
	// Stop waits for the tick goroutine, which may be queueing a draw.
	go p.Stop()
}

func (a *App) toggleHold() {
	if a.player == nil {
		return
	}
	v := a.player.Viewer()
	now := time.Now()
	if a.holding {
		v.Release(now, story.SideNone)
	} else {
		v.Press(now)
	}
	a.holding = !a.holding
	a.onStoryFrame(a.player, v.Frame())
}

// tapStory is a press released at once: a short tap on one side.
func (a *App) tapStory(side story.Side) {
	if a.player == nil {
		return
	}
	v := a.player.Viewer()
	now := time.Now()
	v.Press(now)
	v.Release(now, side)
	a.holding = false
	a.onStoryFrame(a.player, v.Frame())
}

func (a *App) setRepliesOpen(open bool) {
	if a.player == nil {
		return
	}
	v := a.player.Viewer()
	v.SetRepliesOpen(open, time.Now())
	a.repliesShown = open
	a.storyView.SetShowReplies(open)
	a.onStoryFrame(a.player, v.Frame())
}

func (a *App) beginReply() {
	if a.player == nil {
		return
	}
	a.setRepliesOpen(true)
	a.showPrompt(ui.PromptReply)
}

func (a *App) toggleReplies() {
	if a.player == nil {
		return
	}
	a.setRepliesOpen(!a.repliesShown)
}

func (a *App) replyStory(text string) {
	if a.player == nil {
		return
	}
	id := a.player.Viewer().Frame().Story.ID
	a.setRepliesOpen(false)
	a.do("reply", func(ctx context.Context) error {
		if err := a.vm.ReplyStory(ctx, id, text); err != nil {
			return err
		}
		a.vm.Flash.Info("Reply sent")
		return nil
	})
}

func findStory(groups []types.StoryGroup, id string) (types.Story, bool) {
	for _, g := range groups {
		for _, s := range g.Stories {
			if s.ID == id {
				return s, true
			}
		}
	}
	return types.Story{}, false
}

// render pushes the cached view model into every view. Runs on the event
// loop.
func (a *App) render() {
	a.chatList.Update(a.vm.Contacts())
	if t := a.vm.Thread(); t != nil && t.Contact.ID == a.thread.ContactID() {
		a.thread.Update(t)
		a.contactInfo.Update(t)
	}
	a.statusList.Update(a.vm.Groups())
	a.profileView.Update(a.vm.Profile(), a.vm.Blocked())

	call := a.vm.Call()
	a.callView.Update(call)
	if call.Status != a.lastCallStatus {
		if call.Status == types.CallEnded {
			if a.pages.Current() == pageCall {
				a.vm.Flash.Info(views.CallStatusLine(call, time.Now()))
			}
			a.pages.Remove(pageCall)
			a.app.SetFocus(a.pages.Focus())
		}
		a.lastCallStatus = call.Status
	}

	a.renderHeader()
}

func (a *App) renderHeader() {
	data := &ui.SessionData{
		Session:  a.session,
		Profile:  a.vm.Profile().Name,
		Contacts: len(a.vm.Contacts()),
		Call:     string(a.vm.Call().Status),
	}
	if st := a.vm.Status(); st != nil {
		data.Model = st.Model
		data.AIConfigured = st.AIConfigured
		data.Messages = st.MessageCount
		data.Stories = st.StoryCount
		data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
	}
	a.sessionInfo.Update(data)
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		if err := a.vm.LoadAll(a.ctx); err != nil {
			a.logger.Warn("initial load", zap.Error(err))
			a.vm.Flash.Err(fmt.Errorf("load: %s", describe(err)))
		}
	}()
	go a.vm.Watch(a.ctx, 2*time.Second)
	a.startRefreshLoop()

	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-a.vm.RefreshCh():
				a.app.QueueUpdateDraw(a.render)
			case <-a.vm.Flash.Watch():
				a.app.QueueUpdateDraw(func() { a.flash.Update(a.vm.Flash.GetMessage()) })
			case <-ticker.C:
				n++
				if n%5 == 0 {
					_ = a.vm.LoadStatus(a.ctx)
				}
				a.app.QueueUpdateDraw(func() {
					if a.pages.Current() == pageCall {
						a.callView.Update(a.vm.Call())
					}
					a.flash.Update(a.vm.Flash.GetMessage())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.closeStory()
	a.cancel()
	a.app.Stop()
}
