package models

import "time"

// MNewsArticle is one ingested article with its per-article sentiment score
// in [-1, 1]. Immutable once written. JSON keys match the market feed wire
// format consumed by the web client.
type MNewsArticle struct {
	NewsArticleID   string    `json:"newsArticleId"`
	StockID         int64     `json:"stockId"`
	ArticleTitle    string    `json:"articleTitle"`
	ArticleURL      string    `json:"articleUrl"`
	ArticleSummary  string    `json:"articleSummary"`
	SentimentScore  float64   `json:"sentimentScore"`
	PublicationTime time.Time `json:"publicationTime"`
}

// NewsPageSize is the fixed page size for news pagination.
const NewsPageSize = 10
