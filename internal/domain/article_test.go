package domain

import (
	"encoding/json"
	"testing"
)

func TestSourceUnmarshalObject(t *testing.T) {
	var a Article
	raw := `{"title":"T","url":"https://example.com/1","source":{"id":"bbc","name":"BBC News"}}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if a.Source.ID != "bbc" || a.Source.Name != "BBC News" {
		t.Fatalf("источник разобран неверно: %+v", a.Source)
	}
}

func TestSourceUnmarshalBareString(t *testing.T) {
	var a Article
	raw := `{"title":"T","url":"https://example.com/1","source":"Reuters"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if a.Source.Name != "Reuters" {
		t.Fatalf("ожидали имя Reuters, получили %q", a.Source.Name)
	}
	if a.Source.ID != "" {
		t.Fatalf("у строкового источника не должно быть id")
	}
}

func TestSourceMarshalSingleShape(t *testing.T) {
	a := Article{Title: "T", URL: "u", Source: Source{Name: "Reuters"}}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	var back Article
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if back.Source.Name != "Reuters" {
		t.Fatalf("после нормализации источник всегда объект {name}")
	}
}
