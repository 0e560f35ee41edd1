package domain

import (
	"bytes"
	"encoding/json"
)

// Source описывает источник статьи.
type Source struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON принимает обе формы источника: объект {id,name} и голую строку.
func (s *Source) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*s = Source{Name: name}
		return nil
	}
	type plain Source
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*s = Source(decoded)
	return nil
}

// Article представляет одну новость бэкенда. Идентичность статьи определяется URL.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Source      Source `json:"source"`
	Category    string `json:"category,omitempty"`
}

// FeedQuery задаёт параметры выборки ленты.
type FeedQuery struct {
	Country  string
	Category string
	Keyword  string
}

// RecommendQuery задаёт параметры запроса рекомендаций: либо URL статьи, либо статья целиком.
type RecommendQuery struct {
	ArticleURL string
	Article    *Article
	N          int
}

// Sentiment содержит результат анализа тональности текста.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Enrichment хранит AI-дополнения статьи. Держится отдельно от Article, ключ — URL.
type Enrichment struct {
	Summary   string     `json:"summary,omitempty"`
	Sentiment *Sentiment `json:"sentiment,omitempty"`
}
