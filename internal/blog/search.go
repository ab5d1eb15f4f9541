package blog

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/2beens/blogsrv/pkg"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
)

const (
	DefaultSearchThreshold = 0.3

	titleWeight = 1.0
	bodyWeight  = 0.4
)

type SearchResult struct {
	Post  *Post
	Score float64
}

// Ranker scores posts against a free text query.
// A field scores (1/|Q|) * sum(tf/(tf+1)) over the distinct query stems Q,
// and the post min(1, 1.0*title + 0.4*body).
type Ranker struct {
	threshold float64
}

func NewRanker(threshold float64) *Ranker {
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}
	return &Ranker{
		threshold: threshold,
	}
}

// Rank returns the posts scoring at least the threshold, best first.
// Ties go to the newer post, then to the higher ID.
// A query without any searchable term yields no results.
func (r *Ranker) Rank(query string, posts []*Post) []SearchResult {
	queryStems := distinct(Tokenize(query))
	if len(queryStems) == 0 {
		return []SearchResult{}
	}

	results := []SearchResult{}
	for _, p := range posts {
		score := r.Score(queryStems, p)
		if score < r.threshold {
			continue
		}
		results = append(results, SearchResult{Post: p, Score: score})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.Post.Publish.Compare(a.Post.Publish); c != 0 {
			return c
		}
		return cmp.Compare(b.Post.ID, a.Post.ID)
	})

	return results
}

// Score computes the relevance of p for already tokenized, distinct query stems.
func (r *Ranker) Score(queryStems []string, p *Post) float64 {
	title := fieldScore(queryStems, termFrequencies(Tokenize(p.Title)))
	body := fieldScore(queryStems, termFrequencies(Tokenize(p.Body)))
	return min(1, titleWeight*title+bodyWeight*body)
}

func fieldScore(queryStems []string, tf map[string]int) float64 {
	if len(queryStems) == 0 {
		return 0
	}
	var sum float64
	for _, q := range queryStems {
		n := float64(tf[q])
		sum += n / (n + 1)
	}
	return sum / float64(len(queryStems))
}

func termFrequencies(stems []string) map[string]int {
	tf := make(map[string]int, len(stems))
	for _, s := range stems {
		tf[s]++
	}
	return tf
}

func distinct(stems []string) []string {
	seen := make(map[string]bool, len(stems))
	out := make([]string, 0, len(stems))
	for _, s := range stems {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Tokenize normalizes text into search stems:
// case fold, strip diacritics, split on non alphanumerics, drop stop words, stem.
func Tokenize(text string) []string {
	folded := cases.Fold().String(pkg.StripDiacritics(text))
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	stems := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		stems = append(stems, english.Stem(w, false))
	}
	return stems
}

var stopWords = func() map[string]bool {
	m := map[string]bool{}
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are as at
		be because been before being below between both but by
		can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how
		i if in into is it its itself just me more most my myself
		no nor not of off on once only or other our ours ourselves out over own
		same she should so some such than that the their theirs them themselves
		then there these they this those through to too under until up
		very was we were what when where which while who whom why will with
		would you your yours yourself yourselves
	`) {
		m[w] = true
	}
	return m
}()
