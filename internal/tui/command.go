package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParsePost splits "path [caption]" and resolves the path to a file URL.
// A leading ~ expands to the home directory.
func ParsePost(input string) (mediaURL, caption string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", errors.New("missing media path")
	}
	path, caption, _ := strings.Cut(input, " ")
	mediaURL, err = ResolveMedia(path)
	if err != nil {
		return "", "", err
	}
	return mediaURL, strings.TrimSpace(caption), nil
}

// ResolveMedia turns a local path into a file URL. http(s) URLs pass through.
func ResolveMedia(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, rest)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

func (a *App) onPrompt(mode ui.PromptMode, text string) {
	a.hidePrompt()
	text = strings.TrimSpace(text)
	switch mode {
	case ui.PromptCommand:
		a.runCommand(ParseCommand(text))
	case ui.PromptFilter:
		a.chatList.SetFilter(text)
	case ui.PromptReply:
		a.replyStory(text)
	case ui.PromptPost:
		a.postStory(text)
	case ui.PromptInvite:
		a.invite(text)
	case ui.PromptName:
		a.updateProfile(&rpc.UpdateProfileRequest{Name: &text})
	case ui.PromptAbout:
		a.updateProfile(&rpc.UpdateProfileRequest{About: &text})
	case ui.PromptAdd:
		a.addContact(text)
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "chat", "c":
		c, ok := a.vm.FindContact(cmd.Args)
		if !ok {
			a.vm.Flash.Warn(fmt.Sprintf("no contact matches %q", cmd.Args))
			return
		}
		a.openChat(c.ID)
	case "add":
		a.addContact(cmd.Args)
	case "post":
		a.postStory(cmd.Args)
	case "invite":
		a.invite(cmd.Args)
	case "name":
		a.updateProfile(&rpc.UpdateProfileRequest{Name: &cmd.Args})
	case "about":
		a.updateProfile(&rpc.UpdateProfileRequest{About: &cmd.Args})
	case "status":
		a.push(pageStatus)
	case "profile":
		a.push(pageProfile)
	case "call":
		a.showCall()
	case "help", "h":
		a.push(pageHelp)
	case "quit", "q":
		a.Stop()
	default:
		a.vm.Flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) addContact(name string) {
	if name == "" {
		a.vm.Flash.Warn("usage: add <name>")
		return
	}
	a.do("add contact", func(ctx context.Context) error {
		c, err := a.vm.AddContact(ctx, name)
		if err != nil {
			return err
		}
		a.vm.Flash.Info("Added " + c.Name)
		return nil
	})
}

func (a *App) postStory(input string) {
	mediaURL, caption, err := ParsePost(input)
	if err != nil {
		a.vm.Flash.Err(err)
		return
	}
	a.do("post", func(ctx context.Context) error {
		if _, err := a.vm.PostStory(ctx, mediaURL, caption); err != nil {
			return err
		}
		a.vm.Flash.Info("Status posted")
		return nil
	})
}

func (a *App) invite(name string) {
	c, ok := a.vm.FindContact(name)
	if !ok {
		a.vm.Flash.Warn(fmt.Sprintf("no contact matches %q", name))
		return
	}
	a.do("invite", func(ctx context.Context) error {
		if err := a.vm.Invite(ctx, c.ID); err != nil {
			return err
		}
		a.vm.Flash.Info("Ringing " + c.Name + "…")
		return nil
	})
}

func (a *App) updateProfile(req *rpc.UpdateProfileRequest) {
	a.do("profile", func(ctx context.Context) error {
		if err := a.vm.UpdateProfile(ctx, req); err != nil {
			return err
		}
		a.vm.Flash.Info("Profile updated")
		return nil
	})
}
