package youtube

import (
	"math"
	"time"
)

// Metrics are the performance figures derived from a video's statistics.
type Metrics struct {
	AgeInDays     int64
	ViewsPerDay   float64
	Engagement    float64
	ViralVelocity float64
}

// Derive computes metrics for v as of now.
func Derive(v Video, now time.Time) Metrics {
	age := AgeInDays(v.PublishedAt, now)
	vpd := float64(v.Views) / float64(age)
	return Metrics{
		AgeInDays:     age,
		ViewsPerDay:   vpd,
		Engagement:    Engagement(v.Views, v.Likes, v.Comments),
		ViralVelocity: ViralVelocity(vpd, v.ChannelSubscribers),
	}
}

// AgeInDays is the number of whole days since publish, at least 1.
func AgeInDays(published, now time.Time) int64 {
	if published.IsZero() {
		return 1
	}
	days := int64(math.Floor(now.Sub(published).Hours() / 24))
	return max(1, days)
}

// Engagement is (likes + comments) / views as a percentage, 0 without views.
func Engagement(views, likes, comments int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes+comments) / float64(views) * 100
}

// ViralVelocity scores 0-100 how a video outperforms its channel. With a
// known subscriber count the expectation is 1% of subscribers per day;
// otherwise raw views per day are bucketed.
func ViralVelocity(viewsPerDay float64, subscribers *int64) float64 {
	if subscribers != nil && *subscribers > 0 {
		expected := float64(*subscribers) * 0.01
		return math.Min(100, viewsPerDay/expected*50)
	}
	switch {
	case viewsPerDay > 100000:
		return 95
	case viewsPerDay > 50000:
		return 85
	case viewsPerDay > 10000:
		return 70
	case viewsPerDay > 1000:
		return 50
	case viewsPerDay > 100:
		return 30
	}
	return 10
}

// GrowthRate is the percentage change from initial views, nil when no
// positive baseline exists.
func GrowthRate(views int64, initial *int64) *float64 {
	if initial == nil || *initial <= 0 {
		return nil
	}
	g := float64(views-*initial) / float64(*initial) * 100
	return &g
}
