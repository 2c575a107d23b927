package interfaces

import (
	"context"
	"iter"

	"github.com/ternarybob/setwatch/internal/models"
)

// NewsLister queries the news source for one symbol.
// The returned sequence is newest-first as delivered by the source and is backed by a single
// request; callers should iterate it once.
type NewsLister interface {
	List(ctx context.Context, symbol, lang string, lookbackDays int) (iter.Seq[models.NewsItem], error)
}

// PageFetcher retrieves the HTML of a detail page
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

// DetailExtractor turns a detail page into a buyback record.
// Only a failure to fetch the page is returned as an error; missing fields are not.
type DetailExtractor interface {
	Extract(ctx context.Context, detailURL string) (*models.BuybackRecord, error)
}

// Notifier delivers one alert for a buyback record
type Notifier interface {
	Notify(ctx context.Context, record *models.BuybackRecord) error
}

// MailSender submits an already composed message to the mail relay
type MailSender interface {
	Send(ctx context.Context, to []string, msg []byte) error
}
