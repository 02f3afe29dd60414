package database

import "github.com/TobiSchelling/Folio/internal/taste"

// User owns a collection, a taste profile and a training history.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	APIToken  string `json:"-"`
	CreatedAt string `json:"createdAt"`
}

// Item is one saved piece of content. Metric fields are nil when unknown.
type Item struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"userId"`
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	Platform           string   `json:"platform"`
	ContentType        string   `json:"contentType"`
	Thumbnail          *string  `json:"thumbnail"`
	VideoID            *string  `json:"videoId"`
	ChannelID          *string  `json:"channelId"`
	Author             *string  `json:"author"`
	PublishedAt        *string  `json:"publishedAt"`
	Views              *int64   `json:"views"`
	Likes              *int64   `json:"likes"`
	Comments           *int64   `json:"comments"`
	Engagement         *float64 `json:"engagement"`
	ChannelSubscribers *int64   `json:"channelSubscribers"`
	ViewsPerDay        *float64 `json:"viewsPerDay"`
	ViralVelocity      *float64 `json:"viralVelocity"`
	GrowthRate         *float64 `json:"growthRate"`
	AgeInDays          *int64   `json:"ageInDays"`
	InitialViews       *int64   `json:"initialViews"`
	InitialLikes       *int64   `json:"initialLikes"`
	InitialComments    *int64   `json:"initialComments"`
	LastCheckedAt      *string  `json:"lastCheckedAt"`
	CheckCount         int      `json:"checkCount"`
	Notes              *string  `json:"notes"`
	Tags               []string `json:"tags"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	Platform string
	Search   string
	Limit    int
	Offset   int
}

// ItemPatch holds the user-editable fields of an item. Nil fields are left alone.
type ItemPatch struct {
	Title *string
	Notes *string
	Tags  *[]string
}

// ItemAnalysis is the typed DNA record attached to one item.
type ItemAnalysis struct {
	ItemID        string `json:"itemId"`
	SchemaVersion int    `json:"schemaVersion"`
	taste.DNA
	AnalyzedAt string `json:"analyzedAt"`
}

// Profile is the persisted part of a user's taste profile. The combined
// bundle is derived on read with taste.Merge.
type Profile struct {
	UserID         string             `json:"userId"`
	ItemCount      int                `json:"itemCount"`
	RatingCount    int                `json:"ratingCount"`
	Confidence     float64            `json:"confidence"`
	BundleVersion  int                `json:"bundleVersion"`
	Collection     taste.Bundle       `json:"collectionBundle"`
	Training       taste.Bundle       `json:"trainingBundle"`
	Preferences    *taste.Preferences `json:"trainedPreferences"`
	Dislikes       *taste.Dislikes    `json:"trainedDislikes"`
	LastTrainedAt  *string            `json:"lastTrainedAt"`
	LastTrainingAt *string            `json:"lastTrainingAt"`
	UpdatedAt      string             `json:"updatedAt"`
}

// Combined returns the merge of the training and collection bundles.
func (p *Profile) Combined() taste.Bundle {
	return taste.Merge(p.Training, p.Collection)
}

// Suggestion source types.
const (
	SourceSimilar     = "SIMILAR"
	SourceTrending    = "TRENDING"
	SourceExploration = "EXPLORATION"
	SourceRandom      = "RANDOM"
)

// Suggestion statuses.
const (
	StatusPending = "PENDING"
	StatusRated   = "RATED"
	StatusSkipped = "SKIPPED"
)

// Suggestion is a discovered piece of content queued for training.
type Suggestion struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Platform   string         `json:"platform"`
	Thumbnail  *string        `json:"thumbnail"`
	Relevance  float64        `json:"relevanceScore"`
	SourceType string         `json:"sourceType"`
	Query      *string        `json:"sourceQuery"`
	Status     string         `json:"status"`
	Signals    *taste.Signals `json:"signals,omitempty"`
	ExpiresAt  string         `json:"expiresAt"`
	CreatedAt  string         `json:"createdAt"`
	RatedAt    *string        `json:"ratedAt"`
}

// Rating is one append-only training event.
type Rating struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	RatingType     string  `json:"ratingType"`
	Outcome        string  `json:"outcome"`
	SuggestionAID  *string `json:"suggestionAId"`
	SuggestionBID  *string `json:"suggestionBId"`
	SuggestionID   *string `json:"suggestionId"`
	ResponseTimeMs *int64  `json:"responseTimeMs"`
	CreatedAt      string  `json:"createdAt"`
}

// RatingCounts summarizes a user's rating history.
type RatingCounts struct {
	Total       int
	Comparative int
	Binary      int
}

// Variant is one generated title suggestion.
type Variant struct {
	ID                   string `json:"id"`
	UserID               string `json:"userId"`
	Prompt               string `json:"prompt"`
	Platform             string `json:"platform"`
	Text                 string `json:"text"`
	PerformanceRationale string `json:"performanceRationale"`
	TasteRationale       string `json:"tasteRationale"`
	PerformanceScore     int    `json:"performanceScore"`
	TasteScore           int    `json:"tasteScore"`
	CreatedAt            string `json:"createdAt"`
}
