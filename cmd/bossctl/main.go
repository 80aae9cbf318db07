package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/bossmsg/internal/session"
	"github.com/matheus3301/bossmsg/internal/tui/client"
)

// cli carries the resolved session and connection shared by subcommands.
type cli struct {
	sessionFlag string
	jsonOut     bool
	timeout     time.Duration

	session string
	client  *client.Client
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "bossctl",
		Short:         "Script a Boss Massager session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.client != nil {
				return c.client.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&c.sessionFlag, "session", "", "session name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "output in JSON format")
	cmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "per-request timeout")

	cmd.AddCommand(
		statusCmd(c),
		contactsCmd(c),
		messagesCmd(c),
		sendCmd(c),
		translateCmd(c),
		blockCmd(c, true),
		blockCmd(c, false),
		blockedCmd(c),
		profileCmd(c),
		storyCmd(c),
		callCmd(c),
		eventsCmd(c),
	)
	return cmd
}

func (c *cli) connect() error {
	c.session = session.Resolve(c.sessionFlag)
	if err := session.ValidateName(c.session); err != nil {
		return err
	}
	cl, err := client.New(session.SocketPath(c.session))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", c.session, err)
	}
	c.client = cl
	return nil
}

// ctx returns a request context bounded by --timeout.
func (c *cli) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.timeout)
}
