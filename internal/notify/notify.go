// Package notify posts a run summary to a Discord channel. Optional: the
// pipeline does not depend on it, the CLI wires it up when a token and
// channel are configured.
package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/perlindqvist/tolka/internal/pipeline"
)

type Notifier struct {
	session   *discordgo.Session
	channelID string
}

func New(botToken, channelID string) (*Notifier, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return &Notifier{session: session, channelID: channelID}, nil
}

// RunSummary sends one message describing the finished run. REST-only; no
// gateway connection is opened.
func (n *Notifier) RunSummary(worksheet string, sum pipeline.Summary, dryRun bool) error {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	msg := fmt.Sprintf(
		"Translation run finished%s — worksheet **%s**: %d rows seen, %d translated, %d already done, %d without source text, %d failed.",
		mode, worksheet, sum.Seen, sum.Translated, sum.AlreadyDone, sum.NoContent, sum.Failed,
	)
	if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
		return fmt.Errorf("sending run summary: %w", err)
	}
	return nil
}
