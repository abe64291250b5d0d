// Package resource models a player's energy and domain power.
package resource

import (
	"fmt"
	"sort"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// Domain is one of the six rune domains.
type Domain string

const (
	DomainFury  Domain = "fury"
	DomainCalm  Domain = "calm"
	DomainMind  Domain = "mind"
	DomainBody  Domain = "body"
	DomainChaos Domain = "chaos"
	DomainOrder Domain = "order"
)

// Domains lists every domain in a fixed order. Generic power payments
// draw from domains in this order.
var Domains = []Domain{DomainFury, DomainCalm, DomainMind, DomainBody, DomainChaos, DomainOrder}

// ParseDomain validates a domain name.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Pool holds spendable energy plus per-domain power. The owning engine
// serialises access, so a Pool carries no lock of its own.
type Pool struct {
	Energy int            `json:"energy"`
	Power  map[Domain]int `json:"power"`
}

// NewPool creates an empty pool.
func NewPool() Pool {
	return Pool{Power: make(map[Domain]int)}
}

// AddEnergy adds generic energy. Non-positive amounts are ignored.
func (p *Pool) AddEnergy(amount int) {
	if amount <= 0 {
		return
	}
	p.Energy += amount
}

// AddPower adds power of a domain. Non-positive amounts are ignored.
func (p *Pool) AddPower(domain Domain, amount int) {
	if amount <= 0 {
		return
	}
	if p.Power == nil {
		p.Power = make(map[Domain]int)
	}
	p.Power[domain] += amount
}

// PowerOf returns the power available for a domain.
func (p Pool) PowerOf(domain Domain) int {
	return p.Power[domain]
}

// TotalPower returns the power summed over all domains.
func (p Pool) TotalPower() int {
	total := 0
	for _, v := range p.Power {
		total += v
	}
	return total
}

// CanPay reports whether the pool covers cost.
func (p Pool) CanPay(cost Cost) bool {
	return len(p.shortfall(cost)) == 0
}

// Pay deducts cost from the pool. Nothing is deducted unless the whole
// cost can be covered.
func (p *Pool) Pay(cost Cost) error {
	if missing := p.shortfall(cost); len(missing) > 0 {
		return apperr.WithMetadata(apperr.CodeInsufficientResources,
			fmt.Sprintf("insufficient resources to pay %s", cost), missing)
	}

	p.Energy -= cost.Energy
	for d, amount := range cost.Power {
		if amount > 0 {
			p.Power[d] -= amount
		}
	}
	remaining := cost.AnyPower
	for _, d := range Domains {
		if remaining == 0 {
			break
		}
		take := p.Power[d]
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		p.Power[d] -= take
		remaining -= take
	}
	return nil
}

func (p Pool) shortfall(cost Cost) map[string]string {
	missing := map[string]string{}
	if cost.Energy > p.Energy {
		missing["energy"] = fmt.Sprintf("%d", cost.Energy-p.Energy)
	}
	spare := 0
	for _, d := range Domains {
		need := cost.Power[d]
		have := p.Power[d]
		if need > have {
			missing[string(d)] = fmt.Sprintf("%d", need-have)
			continue
		}
		spare += have - need
	}
	if cost.AnyPower > spare {
		missing["any"] = fmt.Sprintf("%d", cost.AnyPower-spare)
	}
	return missing
}

// Empty drains the pool.
func (p *Pool) Empty() {
	p.Energy = 0
	p.Power = make(map[Domain]int)
}

// Copy creates a deep copy of the pool.
func (p Pool) Copy() Pool {
	out := Pool{Energy: p.Energy, Power: make(map[Domain]int, len(p.Power))}
	for d, v := range p.Power {
		out.Power[d] = v
	}
	return out
}

// String renders the pool for logs.
func (p Pool) String() string {
	s := fmt.Sprintf("energy=%d", p.Energy)
	keys := make([]string, 0, len(p.Power))
	for d := range p.Power {
		keys = append(keys, string(d))
	}
	sort.Strings(keys)
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%d", k, p.Power[Domain(k)])
	}
	return s
}
