package notify

import (
	"context"

	"potsync/domain/entities"
	"potsync/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

var _ interfaces.Notifier = (*FeedNotifier)(nil)

// FeedPoster posts an item to the primary account's in-app feed
type FeedPoster interface {
	PostFeedItem(ctx context.Context, title, body string) error
}

// FeedOpener opens a feed session for the primary account
type FeedOpener func(ctx context.Context, account *entities.PrimaryAccount) (FeedPoster, error)

// PrimaryAccountSource loads the linked primary account
type PrimaryAccountSource interface {
	GetPrimary(ctx context.Context) (*entities.PrimaryAccount, error)
}

// FeedNotifier shows notifications in the primary account's app feed
type FeedNotifier struct {
	accounts PrimaryAccountSource
	open     FeedOpener
}

// NewFeedNotifier creates a new feed notifier
func NewFeedNotifier(accounts PrimaryAccountSource, open FeedOpener) *FeedNotifier {
	return &FeedNotifier{accounts: accounts, open: open}
}

// Notify posts a feed item. Failures are logged and dropped.
func (n *FeedNotifier) Notify(ctx context.Context, account, title, message string) {
	logger := log.WithFields(log.Fields{
		"account": account,
		"title":   title,
	})

	primary, err := n.accounts.GetPrimary(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load primary account for feed notification")
		return
	}
	if primary == nil {
		logger.Debug("No primary account linked, skipping feed notification")
		return
	}

	poster, err := n.open(ctx, primary)
	if err != nil {
		logger.WithError(err).Warn("Failed to open feed session")
		return
	}

	if err := poster.PostFeedItem(ctx, title, message); err != nil {
		logger.WithError(err).Warn("Failed to post feed notification")
	}
}
