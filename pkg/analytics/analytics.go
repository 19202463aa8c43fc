// Package analytics provides the word statistics used to rank and summarize
// search hits.
package analytics

import (
	"sort"
	"strings"
)

// stopwords are ignored when counting and matching terms.
var stopwords = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields(`
		a about above across after afterwards again against all almost alone along already also
		although always am among amongst an and another any anyhow anyone anything anyway
		anywhere are aren't around as at
		be became because become becomes becoming been before beforehand behind being below
		beside besides between beyond both but by
		can can't cannot could couldn't
		did didn't do does doesn't doing don't done down during
		each either else elsewhere enough entirely especially etc even ever every everyone
		everything everywhere
		few for former formerly from further
		had hadn't has hasn't have haven't having he he'd he'll he's hence her here hereafter
		hereby herein here's hereupon hers herself him himself his how however
		i i'd i'll i'm i've if in indeed into is isn't it it's its itself
		just keep
		last latter latterly least less let let's like likely
		made make many may maybe me meanwhile might mine more moreover most mostly much must
		mustn't my myself
		neither never nevertheless next no nobody none noone nor not nothing now nowhere
		of off often on once one only onto or other others otherwise our ours ourselves out
		over own
		per perhaps please put
		rather re same see seem seemed seeming seems several she she'd she'll she's should
		shouldn't since so some somehow someone something sometime sometimes somewhere still
		such
		than that that's the their theirs them themselves then thence there thereafter thereby
		therefore therein there's thereupon these they they'd they'll they're they've this
		those through throughout thru thus to together too toward towards
		under until up upon us
		very via
		was wasn't we we'd we'll we're we've well were weren't what whatever what's when
		whence whenever where whereafter whereas whereby wherein where's whereupon wherever
		whether which while whither who who'd whoever who'll who's whose why with within
		without won't would wouldn't
		yet you you'd you'll you're you've your yours yourself yourselves
		ain't it'll shan't that'll when's
	`) {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether word is ignored by term matching.
func IsStopword(word string) bool {
	_, ok := stopwords[strings.ToLower(word)]
	return ok
}

// Terms returns the lower-cased, punctuation-trimmed, non-stopword tokens of
// text in order of appearance.
func Terms(text string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return ('a' > r || r > 'z') && ('0' > r || r > '9')
		})
		if word == "" || IsStopword(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// WordFrequency counts the terms of text.
func WordFrequency(text string) map[string]int {
	frequencies := make(map[string]int)
	for _, t := range Terms(text) {
		frequencies[t]++
	}
	return frequencies
}

// TopNWords returns the n most frequent terms of text, most frequent first.
// Ties are broken alphabetically.
func TopNWords(text string, n int) []string {
	frequencies := WordFrequency(text)

	type wordCount struct {
		word  string
		count int
	}
	counts := make([]wordCount, 0, len(frequencies))
	for k, v := range frequencies {
		counts = append(counts, wordCount{k, v})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].word < counts[j].word
	})

	limit := min(n, len(counts))
	top := make([]string, limit)
	for i := 0; i < limit; i++ {
		top[i] = counts[i].word
	}
	return top
}

// Score is the fraction of query terms found in text, in [0, 1]. A query
// term is found when some term of text contains it. A query made only of
// stopwords scores 1.
func Score(query, text string) float64 {
	want := Terms(query)
	if len(want) == 0 {
		return 1
	}
	have := WordFrequency(strings.NewReplacer("_", " ", "/", " ").Replace(text))
	matched := 0
	for _, t := range want {
		for h := range have {
			if strings.Contains(h, t) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(want))
}
