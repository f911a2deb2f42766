package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"CommunityInsights/internal/config"
	"CommunityInsights/internal/ports"
)

// Notifier posts run summaries to a Slack channel.
type Notifier struct {
	api       *slack.Client
	channelID string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a bot client for the configured channel.
func NewNotifier(cfg config.SlackConfig) *Notifier {
	var opts []slack.Option
	if cfg.APIURL != "" {
		base := cfg.APIURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, slack.OptionAPIURL(base))
	}
	return &Notifier{
		api:       slack.New(cfg.BotToken, opts...),
		channelID: cfg.ChannelID,
	}
}

// Notify sends message as a plain-text post.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.channelID == "" {
		return fmt.Errorf("slack notifier misconfigured")
	}
	_, _, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText("```\n"+message+"\n```", false),
	)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}
