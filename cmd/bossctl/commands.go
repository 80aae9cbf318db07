package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui"
	"github.com/matheus3301/bossmsg/internal/tui/model"
	"github.com/matheus3301/bossmsg/internal/tui/views"
	"github.com/matheus3301/bossmsg/internal/types"
)

func statusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.GetStatus(ctx)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			ai := "configured"
			if !resp.AIConfigured {
				ai = "offline (fallback replies)"
			}
			fmt.Printf("Session:  %s (pid %d)\n", resp.Session, resp.PID)
			fmt.Printf("Uptime:   %s\n", time.Duration(resp.UptimeMs)*time.Millisecond)
			fmt.Printf("Model:    %s, %s\n", resp.Model, ai)
			fmt.Printf("Contacts: %d\n", resp.ContactCount)
			fmt.Printf("Messages: %d\n", resp.MessageCount)
			fmt.Printf("Stories:  %d\n", resp.StoryCount)
			fmt.Printf("Call:     %s\n", resp.CallStatus)
			return nil
		},
	}
}

func contactsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts [query]",
		Short: "List contacts, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			resp, err := c.client.ListContacts(ctx, query)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			printContacts(os.Stdout, resp.Contacts, resp.ActiveID)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a contact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.AddContact(ctx, strings.Join(args, " "), "")
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("Added %s (%s)\n", resp.Contact.Name, resp.Contact.ID)
			return nil
		},
	})
	return cmd
}

func messagesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <contact>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			resp, err := c.client.ListMessages(ctx, id)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			printThread(os.Stdout, resp)
			return nil
		},
	}
}

func sendCmd(c *cli) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send <contact> <text...>",
		Short: "Send a message; --wait prints the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			resp, err := c.client.SendText(ctx, &rpc.SendTextRequest{ContactID: id, Text: strings.Join(args[1:], " ")})
			if err != nil {
				return err
			}
			if wait <= 0 {
				if c.jsonOut {
					return outputJSON(resp)
				}
				fmt.Printf("Sent %s\n", resp.Message.ID)
				return nil
			}
			reply, err := c.waitReply(cmd, id, resp.Message.ID, wait)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(reply)
			}
			fmt.Println(reply.Text)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the reply")
	return cmd
}

// waitReply polls the conversation until a reply after sentID is complete.
func (c *cli) waitReply(cmd *cobra.Command, contactID, sentID string, wait time.Duration) (types.Message, error) {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		ctx, cancel := c.ctx(cmd.Context())
		resp, err := c.client.ListMessages(ctx, contactID)
		cancel()
		if err != nil {
			return types.Message{}, err
		}
		if reply, ok := replyAfter(resp.Messages, sentID); ok && !resp.Typing {
			return reply, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return types.Message{}, errors.New("no reply before --wait elapsed")
}

// replyAfter returns the last contact message following the message sentID.
func replyAfter(msgs []types.Message, sentID string) (types.Message, bool) {
	seen := false
	var reply types.Message
	found := false
	for _, m := range msgs {
		if m.ID == sentID {
			seen = true
			continue
		}
		if seen && m.Sender == types.SenderAI {
			reply, found = m, true
		}
	}
	return reply, found
}

func translateCmd(c *cli) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "translate <contact> [message-id]",
		Short: "Translate a message (default: the last reply)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			msgID := ""
			if len(args) == 2 {
				msgID = args[1]
			} else {
				thread, err := c.client.ListMessages(ctx, id)
				if err != nil {
					return err
				}
				last, ok := model.LastReply(thread)
				if !ok {
					return errors.New("no reply to translate")
				}
				msgID = last.ID
			}
			resp, err := c.client.Translate(ctx, &rpc.TranslateRequest{ContactID: id, MessageID: msgID, Language: lang})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			fmt.Println(resp.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "target language (default from daemon config)")
	return cmd
}

func blockCmd(c *cli, block bool) *cobra.Command {
	use, short := "block", "Block a contact"
	if !block {
		use, short = "unblock", "Unblock a contact"
	}
	return &cobra.Command{
		Use:   use + " <contact>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			if block {
				err = c.client.Block(ctx, id)
			} else {
				err = c.client.Unblock(ctx, id)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%sed %s\n", use, args[0])
			return nil
		},
	}
}

func blockedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List blocked contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.ListBlocked(ctx)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			if len(resp.Contacts) == 0 {
				fmt.Println("Nobody is blocked.")
				return nil
			}
			printContacts(os.Stdout, resp.Contacts, "")
			return nil
		},
	}
}

func profileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.GetProfile(ctx)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			printProfile(resp.Profile)
			return nil
		},
	}

	var name, about, avatar string
	set := &cobra.Command{
		Use:   "set",
		Short: "Edit name, about or avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &rpc.UpdateProfileRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("about") {
				req.About = &about
			}
			if cmd.Flags().Changed("avatar") {
				req.Avatar = &avatar
			}
			if req.Name == nil && req.About == nil && req.Avatar == nil {
				return errors.New("nothing to change: pass --name, --about or --avatar")
			}
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.UpdateProfile(ctx, req)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			printProfile(resp.Profile)
			return nil
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().StringVar(&about, "about", "", "status text")
	set.Flags().StringVar(&avatar, "avatar", "", "avatar URL")

	qr := &cobra.Command{
		Use:   "qr",
		Short: "Print the profile share code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.GetProfile(ctx)
			if err != nil {
				return err
			}
			code, err := qrcode.New(views.ShareLink(resp.Profile), qrcode.Low)
			if err != nil {
				return err
			}
			fmt.Print(code.ToSmallString(false))
			return nil
		},
	}
	cmd.AddCommand(set, qr)
	return cmd
}

func storyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story",
		Short: "List, post and answer status stories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List story groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.ListGroups(ctx)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			printGroups(os.Stdout, resp.Groups)
			return nil
		},
	}

	var caption string
	var duration time.Duration
	post := &cobra.Command{
		Use:   "post <path|url>",
		Short: "Post a story from an image or video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := tui.ResolveMedia(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.PostStory(ctx, &rpc.PostStoryRequest{
				MediaURL:   url,
				Caption:    caption,
				DurationMs: duration.Milliseconds(),
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("Posted %s (%s)\n", resp.Story.ID, resp.Story.MediaKind)
			return nil
		},
	}
	post.Flags().StringVar(&caption, "caption", "", "caption shown under the media")
	post.Flags().DurationVar(&duration, "duration", 0, "clip length for videos")

	reply := &cobra.Command{
		Use:   "reply <story-id> <text...>",
		Short: "Reply to a story",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.ReplyStory(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("Replied %s\n", resp.Reply.ID)
			return nil
		},
	}

	view := &cobra.Command{
		Use:   "view <story-id>",
		Short: "Record a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.ViewStory(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("%d views\n", resp.ViewCount)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <story-id>",
		Short: "Delete one of my stories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			if err := c.client.DeleteStory(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, post, reply, view, del)
	return cmd
}

func callCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Show the call session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.GetCall(ctx)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}

	var video bool
	start := &cobra.Command{
		Use:   "start <contact>",
		Short: "Call a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			kind := types.CallAudio
			if video {
				kind = types.CallVideo
			}
			resp, err := c.client.StartCall(ctx, id, kind)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}
	start.Flags().BoolVar(&video, "video", false, "start a video call")

	end := &cobra.Command{
		Use:   "end",
		Short: "Hang up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.EndCall(ctx)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}

	mute := &cobra.Command{
		Use:       "mute <on|off>",
		Short:     "Mute or unmute the microphone",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.SetMuted(ctx, on)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}

	camera := &cobra.Command{
		Use:       "camera <on|off>",
		Short:     "Turn the camera on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			resp, err := c.client.SetVideoOff(ctx, !on)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}

	invite := &cobra.Command{
		Use:   "invite <contact>",
		Short: "Invite a contact to the call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.ctx(cmd.Context())
			defer cancel()
			id, err := c.resolveContact(ctx, args[0])
			if err != nil {
				return err
			}
			resp, err := c.client.Invite(ctx, id)
			if err != nil {
				return err
			}
			return c.printCall(resp)
		},
	}

	cmd.AddCommand(start, end, mute, camera, invite)
	return cmd
}

func eventsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "events [namespace...]",
		Short: "Stream daemon events (message, state, story, call)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := c.client.WatchEvents(cmd.Context(), args...)
			if err != nil {
				return err
			}
			for {
				ev, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if c.jsonOut {
					if err := outputJSON(ev); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("%s %-22s %s\n", time.UnixMilli(ev.OccurredAtMs).Format("15:04:05.000"), ev.Kind, ev.Payload)
			}
		},
	}
}

// resolveContact maps an id or a name prefix to a contact id.
func (c *cli) resolveContact(ctx context.Context, query string) (string, error) {
	resp, err := c.client.ListContacts(ctx, "")
	if err != nil {
		return "", err
	}
	ct, ok := model.FindContact(resp.Contacts, query)
	if !ok {
		return "", fmt.Errorf("no contact matches %q", query)
	}
	return ct.ID, nil
}

func (c *cli) printCall(resp *rpc.CallResponse) error {
	if c.jsonOut {
		return outputJSON(resp)
	}
	st := resp.Call
	fmt.Printf("Status:  %s\n", st.Status)
	if st.Status == types.CallIdle {
		return nil
	}
	fmt.Printf("Kind:    %s\n", st.Kind)
	fmt.Printf("With:    %s\n", st.Contact.Name)
	fmt.Printf("Elapsed: %s\n", st.Elapsed)
	fmt.Printf("Muted:   %v\n", st.Muted)
	if st.Kind == types.CallVideo {
		fmt.Printf("Camera:  %v\n", !st.VideoOff)
	}
	for _, p := range st.Participants {
		fmt.Printf("  in call: %s\n", p.Name)
	}
	for _, p := range st.Pending {
		fmt.Printf("  ringing: %s\n", p.Name)
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func printContacts(w io.Writer, contacts []types.Contact, activeID string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUNREAD\tLAST MESSAGE")
	for _, ct := range contacts {
		name := ct.Name
		if ct.ID == activeID {
			name = "* " + name
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ct.ID, name, ct.UnreadCount, oneLine(ct.LastMessage, 50))
	}
	_ = tw.Flush()
}

func printThread(w io.Writer, t *rpc.ListMessagesResponse) {
	for _, m := range t.Messages {
		who, ticks := t.Contact.Name, ""
		if m.Sender == types.SenderUser {
			who, ticks = "You", " "+m.Status.Ticks()
		}
		fmt.Fprintf(w, "[%s] %s: %s%s\n", m.Timestamp.Local().Format("15:04"), who, m.Text, ticks)
		if m.TranslatedText != "" {
			fmt.Fprintf(w, "        ↳ %s\n", m.TranslatedText)
		}
	}
	if t.Typing {
		fmt.Fprintf(w, "%s is typing…\n", t.Contact.Name)
	}
}

func printGroups(w io.Writer, groups []types.StoryGroup) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tKIND\tPOSTED\tVIEWS\tREPLIES\tCAPTION")
	for _, g := range groups {
		for _, s := range g.Stories {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				s.ID, g.UserName, s.MediaKind, humanize.Time(s.Timestamp), s.ViewCount, len(s.Replies), oneLine(s.Caption, 40))
		}
	}
	_ = tw.Flush()
}

func printProfile(p types.Profile) {
	fmt.Printf("Name:   %s\n", p.Name)
	fmt.Printf("About:  %s\n", p.About)
	fmt.Printf("Avatar: %s\n", p.Avatar)
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
