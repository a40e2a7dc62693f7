// Copyright 2025 RAG Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSearchReturnsOrganicResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("engine") != "google" {
			t.Errorf("expected engine=google, got %s", q.Get("engine"))
		}
		if q.Get("api_key") != "serp_test" {
			t.Errorf("expected api_key to be forwarded")
		}
		if q.Get("num") != "5" {
			t.Errorf("expected num=5, got %s", q.Get("num"))
		}

		resp := searchResponse{
			OrganicResults: []OrganicResult{
				{Title: "Election results", Snippet: "The winner was...", Link: "https://example.com/a"},
				{Title: "Coverage", Snippet: "Live updates", Link: "https://example.com/b"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient("serp_test", server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	results, err := client.Search(context.Background(), "who won the most recent election", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Election results" {
		t.Errorf("unexpected first title: %s", results[0].Title)
	}
}

func TestSearchZeroResultsIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client, err := NewClient("serp_test", server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	results, err := client.Search(context.Background(), "gibberish query", 5)
	if err != nil {
		t.Fatalf("zero results must not be an error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchCapsResultCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var results []OrganicResult
		for i := 0; i < 8; i++ {
			results = append(results, OrganicResult{Title: "r", Snippet: "s", Link: "l"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{OrganicResults: results})
	}))
	defer server.Close()

	client, err := NewClient("serp_test", server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	results, err := client.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("expected results capped at 5, got %d", len(results))
	}
}

func TestSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{Error: "Invalid API key"})
	}))
	defer server.Close()

	client, err := NewClient("serp_test", server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error for API error payload")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("", "", zap.NewNop()); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
