package resource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cost is the price of playing a card.
type Cost struct {
	Energy   int            `json:"energy"`
	Power    map[Domain]int `json:"power,omitempty"`
	AnyPower int            `json:"any_power,omitempty"`
}

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseCost parses a cost string such as "{2}{fury}" or "{1}{A}".
// Supports:
// - Energy: {1}, {2}, ...
// - Domain power: {fury}, {calm}, {mind}, {body}, {chaos}, {order}
// - Power of any domain: {A}
func ParseCost(costStr string) (Cost, error) {
	cost := Cost{Power: make(map[Domain]int)}
	if strings.TrimSpace(costStr) == "" {
		return cost, nil
	}

	matches := symbolPattern.FindAllStringSubmatch(costStr, -1)
	if len(matches) == 0 {
		return Cost{}, fmt.Errorf("invalid cost %q", costStr)
	}
	for _, match := range matches {
		symbol := strings.ToLower(strings.TrimSpace(match[1]))
		if symbol == "a" {
			cost.AnyPower++
			continue
		}
		if n, err := strconv.Atoi(symbol); err == nil {
			if n < 0 {
				return Cost{}, fmt.Errorf("negative energy in cost %q", costStr)
			}
			cost.Energy += n
			continue
		}
		d, err := ParseDomain(symbol)
		if err != nil {
			return Cost{}, fmt.Errorf("unknown cost symbol {%s}", match[1])
		}
		cost.Power[d]++
	}
	return cost, nil
}

// IsFree reports whether the cost is zero.
func (c Cost) IsFree() bool {
	if c.Energy > 0 || c.AnyPower > 0 {
		return false
	}
	for _, v := range c.Power {
		if v > 0 {
			return false
		}
	}
	return true
}

// String renders the cost back in symbol form.
func (c Cost) String() string {
	var b strings.Builder
	if c.Energy > 0 || c.IsFree() {
		fmt.Fprintf(&b, "{%d}", c.Energy)
	}
	for _, d := range Domains {
		for i := 0; i < c.Power[d]; i++ {
			fmt.Fprintf(&b, "{%s}", d)
		}
	}
	for i := 0; i < c.AnyPower; i++ {
		b.WriteString("{A}")
	}
	return b.String()
}
