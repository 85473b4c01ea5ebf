package chunk

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrEmptyDocument is returned when a document contains no extractable
// content after normalization (whitespace collapse, control stripping).
var ErrEmptyDocument = errors.New("chunk: document has no extractable content")

// Splitter converts raw document text into an ordered sequence of chunks
// under a deterministic splitting policy: prefer paragraph boundaries, fall
// back to sentence boundaries, and hard-cut only when a single sentence
// exceeds the size budget. A paragraph with no sentence structure at all
// (a table or figure dumped as one opaque block) is kept whole even when
// oversized, so no content is lost.
type Splitter struct {
	// MaxChars is the maximum chunk size in runes.
	MaxChars int

	// Overlap is the number of trailing runes from the previous chunk
	// prepended to the next one, preserving context across boundaries.
	// Always strictly less than MaxChars so splitting makes progress.
	Overlap int
}

// Default splitting parameters, matching a comfortable context size for
// current embedding models.
const (
	defaultMaxChars = 1000
	defaultOverlap  = 100
)

// NewSplitter constructs a Splitter, applying defaults for zero values and
// clamping Overlap below MaxChars.
func NewSplitter(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 10
	}
	return &Splitter{MaxChars: maxChars, Overlap: overlap}
}

// Split chunks rawText as a single body of text. Seq is assigned from 0,
// gapless. Returns ErrEmptyDocument when nothing survives normalization.
func (s *Splitter) Split(source, rawText string) ([]Chunk, error) {
	segs := s.segments(rawText)
	if len(segs) == 0 {
		return nil, ErrEmptyDocument
	}

	chunks := make([]Chunk, 0, len(segs))
	for i, text := range s.applyOverlap(segs) {
		chunks = append(chunks, Chunk{
			ID:     NewID(source, i),
			Source: source,
			Seq:    i,
			Text:   text,
		})
	}
	return chunks, nil
}

// Page is one page of source text with its true 1-based page number.
// Numbers may be non-contiguous when unreadable pages were skipped upstream.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int

	// Text is the page's raw text.
	Text string
}

// SplitPages chunks a document page by page, carrying each page's own
// number in the chunk metadata so citations point at the real page even
// when pages were skipped. Seq is assigned across the whole document,
// gapless. Returns ErrEmptyDocument when no page yields content.
func (s *Splitter) SplitPages(source string, pages []Page) ([]Chunk, error) {
	var chunks []Chunk
	seq := 0
	for _, page := range pages {
		segs := s.segments(page.Text)
		for _, text := range s.applyOverlap(segs) {
			chunks = append(chunks, Chunk{
				ID:       NewID(source, seq),
				Source:   source,
				Seq:      seq,
				Text:     text,
				Metadata: map[string]string{"page": strconv.Itoa(page.Number)},
			})
			seq++
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return chunks, nil
}

// budget is the rune budget for raw segments. When overlap is enabled each
// final chunk is raw segment plus overlap prefix plus one joining space, so
// the budget is reduced to keep every chunk within MaxChars.
func (s *Splitter) budget() int {
	if s.Overlap == 0 {
		return s.MaxChars
	}
	b := s.MaxChars - s.Overlap - 1
	if b < 1 {
		b = 1
	}
	return b
}

// segments splits normalized text into raw segments within budget.
func (s *Splitter) segments(text string) []string {
	text = normalize(text)
	if text == "" {
		return nil
	}

	budget := s.budget()
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		if runeLen(para) <= budget {
			units = append(units, para)
			continue
		}

		sents := splitSentences(para)
		if len(sents) <= 1 && !endsWithTerminator(para) {
			// Opaque block (figure/table dump): keep whole, oversized once.
			units = append(units, para)
			continue
		}

		var sentUnits []string
		for _, sent := range sents {
			if runeLen(sent) <= budget {
				sentUnits = append(sentUnits, sent)
				continue
			}
			sentUnits = append(sentUnits, hardCut(sent, budget)...)
		}
		units = append(units, pack(sentUnits, budget, " ")...)
	}

	return pack(units, budget, "\n\n")
}

// applyOverlap turns raw segments into final chunk texts by prepending the
// trailing Overlap runes of the previous raw segment to each continuation.
func (s *Splitter) applyOverlap(segs []string) []string {
	if s.Overlap == 0 || len(segs) < 2 {
		return segs
	}
	out := make([]string, len(segs))
	out[0] = segs[0]
	for i := 1; i < len(segs); i++ {
		tail := tailRunes(segs[i-1], s.Overlap)
		if tail == "" {
			out[i] = segs[i]
			continue
		}
		out[i] = tail + " " + segs[i]
	}
	return out
}

// reSpaces collapses runs of spaces and tabs.
var reSpaces = regexp.MustCompile(`[ \t]+`)

// reBlankRuns collapses three or more newlines into one paragraph break.
var reBlankRuns = regexp.MustCompile(`\n{3,}`)

// normalize collapses whitespace and strips control characters while
// preserving paragraph structure (blank lines).
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	text = reSpaces.ReplaceAllString(b.String(), " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = reBlankRuns.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// sentence terminators, optionally followed by closing quotes or brackets.
func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isClosing(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']'
}

// endsWithTerminator reports whether the text ends in sentence punctuation,
// ignoring trailing closing quotes/brackets.
func endsWithTerminator(text string) bool {
	i := len(text) - 1
	for i >= 0 && isClosing(text[i]) {
		i--
	}
	return i >= 0 && isTerminator(text[i])
}

// splitSentences splits a paragraph at sentence boundaries: a terminator
// (optionally followed by closing quotes/brackets) followed by whitespace.
// No abbreviation handling — the split only needs to be deterministic and
// roughly sentence-shaped, not linguistically perfect.
func splitSentences(para string) []string {
	var out []string
	start := 0
	for i := 0; i < len(para); i++ {
		if !isTerminator(para[i]) {
			continue
		}
		j := i + 1
		for j < len(para) && isClosing(para[j]) {
			j++
		}
		if j < len(para) && para[j] != ' ' && para[j] != '\n' {
			continue
		}
		if sent := strings.TrimSpace(para[start:j]); sent != "" {
			out = append(out, sent)
		}
		for j < len(para) && (para[j] == ' ' || para[j] == '\n') {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(para) {
		if sent := strings.TrimSpace(para[start:]); sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

// hardCut slices text into budget-sized rune windows. Last resort for a
// single sentence longer than the budget.
func hardCut(text string, budget int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += budget {
		end := start + budget
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// pack greedily joins units with sep without exceeding the budget. A unit
// that alone exceeds the budget (opaque block) is emitted as its own segment.
func pack(units []string, budget int, sep string) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	sepLen := runeLen(sep)
	for _, u := range units {
		uLen := runeLen(u)
		if curLen > 0 && curLen+sepLen+uLen > budget {
			flush()
		}
		if curLen == 0 && uLen > budget {
			out = append(out, u)
			continue
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(u)
		curLen += uLen
	}
	flush()
	return out
}

// runeLen returns the length of s in runes.
func runeLen(s string) int {
	return len([]rune(s))
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
