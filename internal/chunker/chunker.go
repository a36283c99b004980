// Package chunker splits extracted page text into overlapping, size-bounded
// passages that remember their page and section.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// Section types recorded in passage metadata.
const (
	SectionContent  = "content"
	SectionFullPage = "full_page"
)

// ErrNoText is returned when no page of a document contains any text.
var ErrNoText = errors.New("document contains no extractable text")

// sentencePattern matches a run of text up to and including its
// terminating punctuation.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Page is the extracted text of one document page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Options configures a Chunker.
type Options struct {
	// ChunkSize is the character budget of a passage.
	ChunkSize int
	// Overlap is converted to a number of trailing fragments (Overlap/50)
	// carried into the next passage.
	Overlap           int
	SectionKeywords   []string
	MinFragmentLength int
	MaxHeaderLength   int
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:         1000,
		Overlap:           200,
		SectionKeywords:   []string{"COVERAGE", "EXCLUSIONS", "DEFINITIONS", "CONDITIONS", "BENEFITS", "LIMITATIONS", "WAITING PERIOD", "CLAIMS", "PREMIUM", "DEDUCTIBLE", "TERMINATION", "RENEWAL"},
		MinFragmentLength: 10,
		MaxHeaderLength:   100,
	}
}

// Chunker turns pages into passages. It is stateless and safe for
// concurrent use.
type Chunker struct {
	opts     Options
	keywords []string
}

// New creates a Chunker. Zero option values fall back to DefaultOptions.
func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if len(opts.SectionKeywords) == 0 {
		opts.SectionKeywords = def.SectionKeywords
	}
	if opts.MinFragmentLength <= 0 {
		opts.MinFragmentLength = def.MinFragmentLength
	}
	if opts.MaxHeaderLength <= 0 {
		opts.MaxHeaderLength = def.MaxHeaderLength
	}

	kw := make([]string, 0, len(opts.SectionKeywords))
	for _, k := range opts.SectionKeywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, strings.ToLower(k))
		}
	}
	return &Chunker{opts: opts, keywords: kw}
}

// block is a run of page text under one section label.
type block struct {
	text        string
	page        int
	section     string
	sectionType string
}

// Chunk splits the pages of documentID into passages with ids
// {documentID}_chunk_{n}, numbered sequentially across the document.
func (c *Chunker) Chunk(documentID string, pages []Page) ([]vectordb.Passage, error) {
	var blocks []block
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		blocks = append(blocks, c.sections(p)...)
	}
	if len(blocks) == 0 {
		return nil, ErrNoText
	}

	var out []vectordb.Passage
	for _, b := range blocks {
		for _, text := range c.pack(c.fragments(b.text)) {
			n := len(out)
			out = append(out, vectordb.Passage{
				ID:         fmt.Sprintf("%s_chunk_%d", documentID, n),
				DocumentID: documentID,
				Text:       text,
				Page:       b.page,
				Section:    b.section,
				Metadata: map[string]string{
					"chunk_index":  strconv.Itoa(n),
					"word_count":   strconv.Itoa(len(strings.Fields(text))),
					"section_type": b.sectionType,
				},
			})
		}
	}
	return out, nil
}

// sections splits a page into blocks at section header lines. A page
// without any header becomes a single full-page block.
func (c *Chunker) sections(p Page) []block {
	var (
		blocks    []block
		current   string
		lines     []string
		sawHeader bool
	)
	flush := func() {
		if len(lines) > 0 && sawHeader {
			blocks = append(blocks, block{
				text:        strings.Join(lines, "\n"),
				page:        p.Number,
				section:     current,
				sectionType: SectionContent,
			})
		}
		lines = nil
	}

	for _, line := range strings.Split(p.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c.isHeader(line) {
			if !sawHeader && len(lines) > 0 {
				// Text before the first header keeps the page label.
				blocks = append(blocks, block{
					text:        strings.Join(lines, "\n"),
					page:        p.Number,
					section:     pageLabel(p.Number),
					sectionType: SectionContent,
				})
				lines = nil
			}
			flush()
			sawHeader = true
			current = line
			continue
		}
		lines = append(lines, line)
	}
	flush()

	if len(blocks) == 0 {
		blocks = append(blocks, block{
			text:        p.Text,
			page:        p.Number,
			section:     pageLabel(p.Number),
			sectionType: SectionFullPage,
		})
	}
	return blocks
}

func pageLabel(n int) string {
	return fmt.Sprintf("Page %d", n)
}

// isHeader reports whether line is short and names a section keyword.
func (c *Chunker) isHeader(line string) bool {
	if utf8.RuneCountInString(line) >= c.opts.MaxHeaderLength {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// fragments splits text on '.', '!' and '?' into trimmed sentence-like
// pieces, dropping short ones.
func (c *Chunker) fragments(text string) []string {
	var out []string
	for _, f := range sentencePattern.FindAllString(text, -1) {
		f = strings.Join(strings.Fields(f), " ")
		if utf8.RuneCountInString(f) < c.opts.MinFragmentLength {
			continue
		}
		out = append(out, f)
	}
	return out
}

// pack joins fragments into chunks within the character budget. Each new
// chunk is seeded with the trailing fragments of the previous one.
func (c *Chunker) pack(frags []string) []string {
	size := c.opts.ChunkSize
	carry := 0
	if c.opts.Overlap > 0 {
		carry = max(1, c.opts.Overlap/50)
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	joined := func(parts []string) int {
		n := 0
		for _, p := range parts {
			n += len(p)
		}
		if len(parts) > 1 {
			n += len(parts) - 1
		}
		return n
	}

	for _, f := range frags {
		extra := len(f)
		if len(current) > 0 {
			extra++
		}
		if length+extra <= size || len(current) == 0 {
			current = append(current, f)
			length += extra
			continue
		}

		chunks = append(chunks, strings.Join(current, " "))

		var seed []string
		if carry > 0 {
			seed = append(seed, current[max(0, len(current)-carry):]...)
			// Drop the oldest carried fragments until the new one fits,
			// always keeping at least one.
			for len(seed) > 1 && joined(seed)+1+len(f) > size {
				seed = seed[1:]
			}
		}
		current = append(seed, f)
		length = joined(current)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
