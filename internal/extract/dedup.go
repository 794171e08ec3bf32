package extract

import (
	"hash/maphash"
	"strconv"
)

// Fingerprint is the identity of a matched failure. Two blocks with equal
// fingerprints are the same error.
type Fingerprint struct {
	Tier    Severity `json:"tier"`
	Token   string   `json:"token"`
	Stage   string   `json:"stage"`
	Message string   `json:"message"`
}

func (f Fingerprint) key() string {
	return strconv.Itoa(int(f.Tier)) + "\x00" + f.Token + "\x00" + f.Stage + "\x00" + f.Message
}

// MatchGroup collects every occurrence of one fingerprint. Body holds the
// lines of the first occurrence only.
type MatchGroup struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	FirstLine   int         `json:"first_line"` // 1-based
	RepeatCount int         `json:"repeat_count"`
	Body        []string    `json:"body,omitempty"`
	Dropped     int         `json:"dropped,omitempty"` // body lines beyond the capture cap
}

// block is a run of matched and continuation lines inside one stage.
type block struct {
	start    int // 0-based index of the first line
	stage    string
	tier     Severity
	keyLine  string
	lines    []string
	dropped  int
	trailing int // context lines attached since the last match
}

func (b *block) add(line string, maxBody int) {
	if len(b.lines) < maxBody {
		b.lines = append(b.lines, line)
		return
	}
	b.dropped++
}

// grouper deduplicates blocks in first-seen order. Only the first keepCap
// groups of each tier are retained, since no later group can be reached by
// the budget allocator. Past that, a group is remembered by a 64-bit hash of
// its key and only counted.
type grouper struct {
	rules    *ruleTable
	byKey    map[string]*MatchGroup
	order    []*MatchGroup
	retained map[Severity]int
	keepCap  int

	seed     maphash.Seed
	overflow map[uint64]struct{}

	unique     map[Severity]int
	matches    int
	duplicates int
	overflowed int // unique groups past keepCap
}

func newGrouper(rules *ruleTable, keepCap int) *grouper {
	return &grouper{
		rules:    rules,
		byKey:    make(map[string]*MatchGroup),
		retained: make(map[Severity]int),
		keepCap:  keepCap,
		seed:     maphash.MakeSeed(),
		overflow: make(map[uint64]struct{}),
		unique:   make(map[Severity]int),
	}
}

func (g *grouper) fingerprint(b *block) Fingerprint {
	msg := g.rules.normalize(b.keyLine)
	return Fingerprint{
		Tier:    b.tier,
		Token:   g.rules.exceptionToken(msg),
		Stage:   b.stage,
		Message: truncateRunes(msg, messageKeyChars),
	}
}

func (g *grouper) add(b *block) {
	g.matches++
	fp := g.fingerprint(b)
	key := fp.key()
	if grp, ok := g.byKey[key]; ok {
		grp.RepeatCount++
		g.duplicates++
		return
	}

	if g.retained[b.tier] >= g.keepCap {
		h := maphash.String(g.seed, key)
		if _, ok := g.overflow[h]; ok {
			g.duplicates++
			return
		}
		g.overflow[h] = struct{}{}
		g.unique[b.tier]++
		g.overflowed++
		return
	}

	grp := &MatchGroup{
		Fingerprint: fp,
		FirstLine:   b.start + 1,
		Body:        b.lines,
		Dropped:     b.dropped,
	}
	g.byKey[key] = grp
	g.order = append(g.order, grp)
	g.retained[b.tier]++
	g.unique[b.tier]++
}

// groups returns the retained groups in first-seen order.
func (g *grouper) groups() []*MatchGroup {
	return g.order
}
