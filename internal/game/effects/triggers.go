package effects

import (
	"regexp"
	"strings"
)

// TriggerKind tags the game event a compiled trigger listens for.
type TriggerKind string

const (
	TriggerPlay      TriggerKind = "play"
	TriggerAttack    TriggerKind = "attack"
	TriggerDefend    TriggerKind = "defend"
	TriggerDeath     TriggerKind = "death"
	TriggerConquer   TriggerKind = "conquer"
	TriggerHold      TriggerKind = "hold"
	TriggerTurnStart TriggerKind = "turn_start"
	TriggerTurnEnd   TriggerKind = "turn_end"
)

// Trigger is a "when X happens" clause compiled at catalog load.
type Trigger struct {
	Kind       TriggerKind `json:"kind"`
	Operations []Operation `json:"operations"`
	Text       string      `json:"text"`
}

var triggerPrefixes = []struct {
	kind TriggerKind
	re   *regexp.Regexp
}{
	{TriggerPlay, regexp.MustCompile(`^when (you play (me|this)|i am played|this is played)\b,?\s*`)},
	{TriggerAttack, regexp.MustCompile(`^when (i|this unit) attacks?\b,?\s*`)},
	{TriggerDefend, regexp.MustCompile(`^when (i|this unit) defends?\b,?\s*`)},
	{TriggerDeath, regexp.MustCompile(`^(when (i|this unit) dies?|deathknell)\b\s*(-|,)?\s*`)},
	{TriggerConquer, regexp.MustCompile(`^when (you|i) conquers?( here| a battlefield)?\b,?\s*`)},
	{TriggerHold, regexp.MustCompile(`^when (you|i) holds?( here| a battlefield)?\b,?\s*`)},
	{TriggerTurnStart, regexp.MustCompile(`^at the start of (your|each) turn\b,?\s*`)},
	{TriggerTurnEnd, regexp.MustCompile(`^at the end of (your|each) turn\b,?\s*`)},
}

// splitTrigger strips a recognised trigger prefix from clause.
func splitTrigger(clause string) (TriggerKind, string) {
	for _, tp := range triggerPrefixes {
		if loc := tp.re.FindStringIndex(clause); loc != nil {
			return tp.kind, strings.TrimSpace(clause[loc[1]:])
		}
	}
	return "", clause
}

// CompileTriggers extracts every trigger clause from effect text. Clauses
// following a trigger within the same sentence belong to that trigger.
func CompileTriggers(text string) []Trigger {
	norm := normalize(text)
	if norm == "" {
		return nil
	}

	var out []Trigger
	for _, sentence := range strings.Split(norm, ".") {
		sentence = strings.TrimSpace(leadingKeys.ReplaceAllString(strings.TrimSpace(sentence), ""))
		kind, body := splitTrigger(sentence)
		if kind == "" {
			continue
		}
		trig := Trigger{Kind: kind, Text: sentence}
		for _, c := range clauses(body) {
			if op, ok := classifyClause(c); ok {
				trig.Operations = append(trig.Operations, op)
			}
		}
		if len(trig.Operations) == 0 {
			trig.Operations = []Operation{{Kind: OpGeneric, TargetMode: TargetNone, TargetHint: HintAny, Text: body}}
		}
		out = append(out, trig)
	}
	return out
}

// StaticOperations returns the profile operations that are not part of a
// trigger, i.e. what a spell does when it resolves.
func StaticOperations(text string) []Operation {
	var out []Operation
	for _, sentence := range strings.Split(normalize(text), ".") {
		sentence = strings.TrimSpace(leadingKeys.ReplaceAllString(strings.TrimSpace(sentence), ""))
		if kind, _ := splitTrigger(sentence); kind != "" {
			continue
		}
		for _, c := range clauses(sentence) {
			if op, ok := classifyClause(c); ok {
				out = append(out, op)
			}
		}
	}
	return out
}
