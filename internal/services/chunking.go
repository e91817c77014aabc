package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	var err error
	sentenceTokenizer, err = english.NewSentenceTokenizer(nil)
	if err != nil {
		// Fall back to the regex splitter below.
		log.Warnf("Failed to load sentence tokenizer: %v", err)
	}
}

// ContentAwareChunk splits content into chunks of roughly maxWords length,
// with overlap between chunks. It is markdown-aware: it tries to split by
// markdown headings first, then by sentences, then by words.
func ContentAwareChunk(content string, maxWords, overlap int) []string {
	if maxWords <= 0 {
		return []string{content}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return []string{}
	}

	// 1. Try to split by markdown headings (##, ###, etc.)
	sections := splitByMarkdownHeadings(content)
	if len(sections) > 1 {
		return chunkSections(sections, maxWords)
	}

	// 2. Fallback: split by sentences
	sentenceList := splitBySentences(content)
	if len(sentenceList) > 1 {
		return chunkSentences(sentenceList, maxWords, overlap)
	}

	// 3. Fallback: word-based chunking
	words := splitWordsUnicode(content)
	if len(words) == 0 {
		return []string{}
	}
	var chunks []string
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// splitByMarkdownHeadings splits content by markdown headings (##, ###, etc.)
// Returns a slice of sections (with headings included).
func splitByMarkdownHeadings(content string) []string {
	re := regexp.MustCompile(`(?m)^#{2,} .*$`)
	indices := re.FindAllStringIndex(content, -1)
	if len(indices) == 0 {
		return []string{content}
	}
	var sections []string
	last := 0
	for i, idx := range indices {
		if idx[0] > last {
			sections = append(sections, strings.TrimSpace(content[last:idx[0]]))
		}
		if i == len(indices)-1 {
			sections = append(sections, strings.TrimSpace(content[idx[0]:]))
		}
		last = idx[0]
	}
	return filterEmpty(sections)
}

// chunkSections chunks each section to maxWords, returns all chunks.
func chunkSections(sections []string, maxWords int) []string {
	var chunks []string
	for _, section := range sections {
		words := splitWordsUnicode(section)
		if len(words) == 0 {
			continue
		}
		start := 0
		for start < len(words) {
			end := start + maxWords
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, strings.Join(words[start:end], " "))
			start = end
		}
	}
	return filterEmpty(chunks)
}

// splitBySentences segments content into sentences using the trained
// tokenizer, falling back to a punctuation regex when it is unavailable.
func splitBySentences(content string) []string {
	if sentenceTokenizer != nil {
		tokens := sentenceTokenizer.Tokenize(content)
		out := make([]string, 0, len(tokens))
		for _, s := range tokens {
			out = append(out, strings.TrimSpace(s.Text))
		}
		if len(out) > 0 {
			return filterEmpty(out)
		}
	}

	re := regexp.MustCompile(`(?m)([^.!?]+[.!?])`)
	matches := re.FindAllString(content, -1)
	if len(matches) == 0 {
		return []string{content}
	}
	return filterEmpty(matches)
}

// chunkSentences groups whole sentences into chunks of at most maxWords
// words, carrying overlap sentences between adjacent chunks.
func chunkSentences(sentenceList []string, maxWords, overlap int) []string {
	var chunks []string
	start := 0
	for start < len(sentenceList) {
		end := start
		wordCount := 0
		for end < len(sentenceList) {
			n := len(splitWordsUnicode(sentenceList[end]))
			if wordCount > 0 && wordCount+n > maxWords {
				break
			}
			wordCount += n
			end++
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(sentenceList[start:end], " ")))
		if end == len(sentenceList) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return filterEmpty(chunks)
}

// splitWordsUnicode splits a string into words using unicode.IsSpace.
func splitWordsUnicode(s string) []string {
	var words []string
	var word []rune
	for _, r := range s {
		if unicode.IsSpace(r) {
			if len(word) > 0 {
				words = append(words, string(word))
				word = word[:0]
			}
		} else {
			word = append(word, r)
		}
	}
	if len(word) > 0 {
		words = append(words, string(word))
	}
	return words
}

// filterEmpty removes empty strings from a slice.
func filterEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
