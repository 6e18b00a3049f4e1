package pet

import "math/rand"

// Testable random source
var RandFloat64 = rand.Float64

// Pool hands out phrases in a shuffled rotation: every phrase is used once
// per cycle and a new cycle never starts with the phrase that ended the last.
type Pool struct {
	phrases []string
	order   []int
	pos     int
	last    int
}

// NewPool creates a pool. Empty strings are dropped.
func NewPool(phrases ...string) *Pool {
	p := &Pool{last: -1}
	for _, s := range phrases {
		if s != "" {
			p.phrases = append(p.phrases, s)
		}
	}
	return p
}

// Len returns the number of phrases in the pool.
func (p *Pool) Len() int { return len(p.phrases) }

// Next returns the next phrase, or "" for an empty pool.
func (p *Pool) Next() string {
	switch len(p.phrases) {
	case 0:
		return ""
	case 1:
		return p.phrases[0]
	}

	if p.pos >= len(p.order) {
		p.shuffle()
	}
	i := p.order[p.pos]
	p.pos++
	p.last = i
	return p.phrases[i]
}

func (p *Pool) shuffle() {
	n := len(p.phrases)
	p.order = make([]int, n)
	for i := range p.order {
		p.order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(RandFloat64() * float64(i+1))
		if j > i {
			j = i
		}
		p.order[i], p.order[j] = p.order[j], p.order[i]
	}
	if p.order[0] == p.last {
		p.order[0], p.order[1] = p.order[1], p.order[0]
	}
	p.pos = 0
}

// DefaultPhrases returns the phrase pools for expressive moods.
func DefaultPhrases() map[Mood][]string {
	return map[Mood][]string{
		MoodHappy: {
			"Yay! ✨",
			"Hehe, that tickles! 🧸",
			"Best. Day. Ever! 🎀",
			"Boop! You're the best! ✨",
		},
		MoodMad: {
			"Hey! I was busy! 😤",
			"Hmph! I was in the middle of something! 🎀",
			"Rude! Five more minutes!",
		},
		MoodScared: {
			"Whoa, too high! Put me down! 😱",
			"Eek! I don't like heights!",
			"Careful, careful, careful!",
		},
		MoodDizzy: {
			"Wheee... everything's spinning! 😵‍💫",
			"Stop shaking meee!",
			"Woah, my circuits are all wobbly!",
		},
	}
}

// DefaultReliefPhrases are spoken when a panic signal clears.
func DefaultReliefPhrases() []string {
	return []string{
		"Phew, solid ground! ✨",
		"Much better, thank you! 🧸",
		"Okay... I'm okay! 🎀",
	}
}
