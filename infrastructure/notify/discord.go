package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"potsync/domain/interfaces"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Embed colors
const (
	colorWarning = 0xF1C40F
	colorError   = 0xE74C3C
	colorInfo    = 0x3498DB
)

var _ interfaces.Notifier = (*DiscordNotifier)(nil)

// embedSender is the subset of *discordgo.Session used to post notifications
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications as embeds to a single channel
type DiscordNotifier struct {
	sender    embedSender
	channelID string
	clock     func() time.Time
}

// NewDiscordSession creates a REST-only Discord session for a bot token
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return session, nil
}

// NewDiscordNotifier creates a notifier posting to channelID
func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return newDiscordNotifier(session, channelID)
}

func newDiscordNotifier(sender embedSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: channelID,
		clock:     time.Now,
	}
}

// Notify posts an embed. Failures are logged and dropped.
func (n *DiscordNotifier) Notify(ctx context.Context, account, title, message string) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: message,
		Color:       embedColor(title),
		Timestamp:   n.clock().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "potsync",
		},
	}
	if account != "" {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Account", Value: account, Inline: true},
		}
	}

	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		log.WithFields(log.Fields{
			"account":   account,
			"title":     title,
			"channelID": n.channelID,
			"error":     err,
		}).Warn("Failed to send Discord notification")
	}
}

func embedColor(title string) int {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "disconnected"):
		return colorError
	case strings.Contains(lower, "insufficient"):
		return colorWarning
	default:
		return colorInfo
	}
}
