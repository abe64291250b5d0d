package effects

import (
	"regexp"
	"strings"
)

type pattern struct {
	kind OperationKind
	re   *regexp.Regexp
}

// Order matters: the first matching pattern wins for a clause.
var taxonomy = []pattern{
	{OpRemoval, regexp.MustCompile(`\b(kill|destroy|banish)\b`)},
	{OpShield, regexp.MustCompile(`\b(shield|barrier|prevent)\b`)},
	{OpHeal, regexp.MustCompile(`\bheals?\b`)},
	{OpDamage, regexp.MustCompile(`\bdamage\b`)},
	{OpControl, regexp.MustCompile(`\b(take|gain)s? control\b|\bcontrol of\b`)},
	{OpStun, regexp.MustCompile(`\bstun(s|ned)?\b`)},
	{OpDebuff, regexp.MustCompile(`-\d+ might|\bgets? -|\bloses? \w+ might\b`)},
	{OpBuff, regexp.MustCompile(`\bbuff\b|\+\d+ might|\bgets? \+`)},
	{OpSearch, regexp.MustCompile(`\bsearch\b|\blook at the top\b`)},
	{OpDraw, regexp.MustCompile(`\bdraws?\b`)},
	{OpDiscard, regexp.MustCompile(`\bdiscards?\b`)},
	{OpSummon, regexp.MustCompile(`\b(play|create|summon)s?\b.*\btokens?\b`)},
	{OpMove, regexp.MustCompile(`\b(move|recall|return)s?\b`)},
	{OpChannel, regexp.MustCompile(`\bchannels?\b.*\brunes?\b`)},
	{OpResourceGain, regexp.MustCompile(`\b(channel|add|gain)s?\b.*\b(energy|runes?|power)\b`)},
}

var (
	bracketed   = regexp.MustCompile(`\[([a-z ]+)\]`)
	leadingKeys = regexp.MustCompile(`^(\[[a-z ]+\]\s*)+`)
	whitespace  = regexp.MustCompile(`\s+`)
	clauseSplit = regexp.MustCompile(`[.;]\s*|,?\s+then\s+`)

	reGlobal   = regexp.MustCompile(`\b(all|each|every)\b`)
	reMultiple = regexp.MustCompile(`\bup to (\w+)\b|\b(two|three|four|\d+) (units|enemies|targets|battlefields)\b`)
	reSingle   = regexp.MustCompile(`\b(a|an|target|another|one)\s+(\w+\s+)?(unit|battlefield|gear|minion|champion)\b`)

	reHintBattlefield = regexp.MustCompile(`\bbattlefields?\b`)
	reHintEnemy       = regexp.MustCompile(`\b(enemy|enemies|opposing|opponents?)\b`)
	reHintAlly        = regexp.MustCompile(`\b(friendly|allied|ally|your units?|you control)\b`)
	reHintSelf        = regexp.MustCompile(`\b(me|this|itself|yourself|you)\b`)

	reTimingReaction = regexp.MustCompile(`\[reaction\]|\breaction\b`)
	reTimingCombat   = regexp.MustCompile(`\[action\]|\bshowdown\b|\bduring combat\b`)
	reTimingSetup    = regexp.MustCompile(`\bat the start of the game\b|\bmulligan\b`)
	reTimingAny      = regexp.MustCompile(`\bat any time\b`)
)

// normalize lowercases and collapses whitespace so patterns stay simple.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "\n", ". ")
	return whitespace.ReplaceAllString(text, " ")
}

// clauses splits normalized text into classifiable pieces, dropping
// keyword-only clauses such as "[tank]".
func clauses(text string) []string {
	var out []string
	for _, c := range clauseSplit.Split(text, -1) {
		c = strings.TrimSpace(strings.Trim(c, ", "))
		if c == "" {
			continue
		}
		c = strings.TrimSpace(leadingKeys.ReplaceAllString(c, ""))
		if strings.TrimSpace(bracketed.ReplaceAllString(c, "")) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Classify maps free-form effect text to a Profile. It never fails: text
// that matches no pattern yields a single generic operation and is flagged
// for manual review. Empty text yields an empty profile.
func Classify(text string) Profile {
	norm := normalize(text)
	profile := Profile{
		Version:    TaxonomyVersion,
		TargetMode: TargetNone,
		Timing:     classifyTiming(norm),
		Keywords:   extractKeywords(norm),
	}
	if norm == "" {
		return profile
	}

	for _, clause := range clauses(norm) {
		_, body := splitTrigger(clause)
		op, ok := classifyClause(body)
		if !ok {
			profile.NeedsReview = true
			continue
		}
		profile.Operations = append(profile.Operations, op)
		profile.TargetMode = profile.TargetMode.Wider(op.TargetMode)
	}

	if len(profile.Operations) == 0 && profile.NeedsReview {
		profile.Operations = []Operation{{
			Kind:       OpGeneric,
			TargetMode: TargetNone,
			TargetHint: HintAny,
			Text:       norm,
		}}
	}
	return profile
}

func classifyClause(clause string) (Operation, bool) {
	for _, p := range taxonomy {
		if !p.re.MatchString(clause) {
			continue
		}
		op := Operation{
			Kind:      p.kind,
			Magnitude: extractMagnitude(p.kind, clause),
			Text:      clause,
		}
		op.TargetMode, op.TargetHint = classifyTargets(p.kind, clause)
		op.RequiresSelection = (op.TargetMode == TargetSingle || op.TargetMode == TargetMultiple) &&
			op.TargetHint != HintSelf
		return op, true
	}
	return Operation{}, false
}

func classifyTargets(kind OperationKind, clause string) (TargetMode, TargetHint) {
	hint := HintAny
	switch {
	case reHintBattlefield.MatchString(clause) && (kind == OpControl || !reSingle.MatchString(clause)):
		hint = HintBattlefield
	case reHintEnemy.MatchString(clause):
		hint = HintEnemy
	case reHintAlly.MatchString(clause):
		hint = HintAlly
	case reHintSelf.MatchString(clause):
		hint = HintSelf
	}

	switch kind {
	case OpDraw, OpDiscard, OpResourceGain, OpChannel, OpSearch, OpSummon:
		// player-scoped operations never select card targets
		if hint != HintEnemy {
			hint = HintSelf
		}
		return TargetNone, hint
	}

	switch {
	case reGlobal.MatchString(clause):
		return TargetGlobal, hint
	case reMultiple.MatchString(clause):
		return TargetMultiple, hint
	case reSingle.MatchString(clause):
		return TargetSingle, hint
	case hint == HintSelf:
		return TargetSingle, hint
	case kind == OpControl:
		return TargetSingle, HintBattlefield
	}
	return TargetSingle, hint
}

func classifyTiming(norm string) Timing {
	switch {
	case reTimingReaction.MatchString(norm):
		return TimingReaction
	case reTimingCombat.MatchString(norm):
		return TimingCombat
	case reTimingSetup.MatchString(norm):
		return TimingSetup
	case reTimingAny.MatchString(norm):
		return TimingAny
	}
	return TimingMain
}

var knownKeywords = map[string]Keyword{
	"tank":     KeywordTank,
	"assault":  KeywordAssault,
	"reaction": KeywordReaction,
	"action":   KeywordAction,
	"shield":   KeywordShield,
}

func extractKeywords(norm string) []Keyword {
	var out []Keyword
	seen := map[Keyword]bool{}
	for _, m := range bracketed.FindAllStringSubmatch(norm, -1) {
		kw, ok := knownKeywords[strings.TrimSpace(m[1])]
		if !ok || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
