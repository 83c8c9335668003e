// Package chunker splits extracted text into overlapping chunks sized for
// embedding and retrieval. The strategy is selected by document type; all
// strategies are deterministic for identical input and parameters.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ragbot/types"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// Overlap is given in characters; the seed is taken in words assuming
	// an average word length of 5 characters.
	avgWordLen = 5
)

var (
	sentenceRe   = regexp.MustCompile(`(?U)[^.!?]+[.!?]+`)
	atxHeadingRe = regexp.MustCompile(`^#{1,6}\s`)
	underlineRe  = regexp.MustCompile(`^(=+|-+|~+)\s*$`)
	pageMarkerRe = regexp.MustCompile(`(?m)^--- Page \d+ ---$`)
)

// Chunk splits text into ordered chunks of at most maxSize characters. Text
// that already fits is returned as a single chunk.
func Chunk(text string, docType types.DocumentType, maxSize, overlap int) []string {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	switch docType {
	case types.DocTypeMarkdown, types.DocTypeRST:
		return splitHeadings(text, maxSize, overlap)
	case types.DocTypePDF:
		return splitPages(text, maxSize, overlap)
	default:
		return splitParagraphs(text, maxSize, overlap)
	}
}

// splitParagraphs packs blank-line-delimited paragraphs; oversized paragraphs
// recurse into sentence-aware splitting.
func splitParagraphs(text string, maxSize, overlap int) []string {
	paragraphs := strings.Split(text, "\n\n")
	return assemble(paragraphs, "\n\n", maxSize, overlap, func(p string) []string {
		return splitSentences(p, maxSize, overlap)
	})
}

func splitSentences(text string, maxSize, overlap int) []string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return assemble(sentences, " ", maxSize, overlap, func(s string) []string {
		return splitWords(s, maxSize, overlap)
	})
}

func splitWords(text string, maxSize, overlap int) []string {
	words := strings.Fields(text)
	return assemble(words, " ", maxSize, overlap, func(w string) []string {
		return hardCut(w, maxSize)
	})
}

// splitHeadings keeps each heading with its following content as one section
// and packs sections; oversized sections recurse into paragraph splitting.
func splitHeadings(text string, maxSize, overlap int) []string {
	sections := headingSections(text)
	return assemble(sections, "\n\n", maxSize, overlap, func(s string) []string {
		return splitParagraphs(s, maxSize, overlap)
	})
}

// headingSections splits on ATX (#-style) and underline-style headings.
func headingSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			sections = append(sections, strings.TrimRight(strings.Join(current, "\n"), "\n"))
			current = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		isHeading := atxHeadingRe.MatchString(line)
		if !isHeading && i+1 < len(lines) &&
			strings.TrimSpace(line) != "" && underlineRe.MatchString(lines[i+1]) {
			isHeading = true
		}
		if isHeading {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return sections
}

// splitPages splits on page-boundary markers; oversized pages recurse into
// paragraph splitting with the page header reattached to the first sub-chunk.
func splitPages(text string, maxSize, overlap int) []string {
	pages := pageSections(text)
	return assemble(pages, "\n\n", maxSize, overlap, func(page string) []string {
		header, body, found := strings.Cut(page, "\n")
		if !found || !pageMarkerRe.MatchString(header) {
			return splitParagraphs(page, maxSize, overlap)
		}
		subs := splitParagraphs(body, maxSize, overlap)
		if len(subs) > 0 {
			subs[0] = header + "\n" + subs[0]
		}
		return subs
	})
}

func pageSections(text string) []string {
	bounds := pageMarkerRe.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return []string{text}
	}

	var pages []string
	if lead := strings.TrimSpace(text[:bounds[0][0]]); lead != "" {
		pages = append(pages, lead)
	}
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		pages = append(pages, strings.TrimSpace(text[b[0]:end]))
	}
	return pages
}

// assemble packs units into chunks of at most maxSize characters, seeding each
// new chunk with the trailing overlap words of the one just closed. Units
// larger than maxSize are handed to splitOversized and its sub-chunks are
// spliced in, the last one continuing as the running chunk.
func assemble(units []string, sep string, maxSize, overlap int, splitOversized func(string) []string) []string {
	var chunks []string
	cur := ""

	for _, unit := range units {
		if strings.TrimSpace(unit) == "" {
			continue
		}

		if len(unit) > maxSize {
			if cur != "" {
				chunks = append(chunks, cur)
				cur = ""
			}
			sub := splitOversized(unit)
			if len(sub) == 0 {
				continue
			}
			chunks = append(chunks, sub[:len(sub)-1]...)
			cur = sub[len(sub)-1]
			continue
		}

		if cur != "" && len(cur)+len(sep)+len(unit) > maxSize {
			chunks = append(chunks, cur)
			cur = overlapSeed(cur, overlap)
			// A seed that would push the next chunk past maxSize is dropped.
			if cur != "" && len(cur)+len(sep)+len(unit) > maxSize {
				cur = ""
			}
		}
		if cur != "" {
			cur += sep
		}
		cur += unit
	}

	if strings.TrimSpace(cur) != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// overlapSeed returns the trailing overlap/5 words of the closed chunk, used
// to preserve context continuity across chunk boundaries.
func overlapSeed(closed string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	words := strings.Fields(closed)
	n := overlap / avgWordLen
	if n > len(words) {
		n = len(words)
	}
	if n == 0 {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

// hardCut slices a single oversized token into pieces of at most maxSize
// bytes, cutting only at rune boundaries.
func hardCut(s string, maxSize int) []string {
	var parts []string
	for len(s) > maxSize {
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			// A single rune wider than the budget is emitted whole.
			_, cut = utf8.DecodeRuneInString(s)
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
