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

// Package chunker splits source documents into pieces sized for embedding.
// Splitting prefers sentence boundaries so a chunk stays readable on its own.
package chunker

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters
	DefaultChunkSize = 1000
	// DefaultOverlap is how many trailing characters repeat in the next chunk
	DefaultOverlap = 100
)

// Splitter cuts text into chunks of roughly ChunkSize characters with
// Overlap characters of context carried between neighbors
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter creates a splitter with defaults applied to zero values
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split cuts text into chunks. Short input comes back as a single chunk;
// empty input produces no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.ChunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > s.ChunkSize {
		cut := s.findCut(text)
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - s.Overlap
		if next <= 0 {
			next = cut
		}
		text = strings.TrimSpace(text[next:])
	}

	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

// findCut picks the split position for the next chunk: the last sentence end
// within ChunkSize, else the last space, else a hard cut
func (s *Splitter) findCut(text string) int {
	window := text[:s.ChunkSize]

	best := -1
	for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, ender); idx >= 0 && idx+len(ender) > best {
			best = idx + len(ender)
		}
	}
	if best > 0 {
		return best
	}

	if idx := strings.LastIndexByte(window, ' '); idx > 0 {
		return idx + 1
	}

	return s.ChunkSize
}

// ParseMarkdown reduces a markdown document to plain text: headers lose their
// markers, code fences and excess blank lines are dropped.
func ParseMarkdown(content string) string {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}

	var cleanLines []string
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		cleanLines = append(cleanLines, strings.TrimLeft(line, "# "))
	}

	return strings.TrimSpace(strings.Join(cleanLines, "\n"))
}
