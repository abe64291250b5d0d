package game

import (
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
	"github.com/Miszion/riftbound-online-backend/internal/game/catalog"
	"github.com/Miszion/riftbound-online-backend/internal/game/counters"
	"github.com/Miszion/riftbound-online-backend/internal/game/resource"
	"github.com/Miszion/riftbound-online-backend/internal/game/rules"
)

// CardView is the public face of a card instance.
type CardView struct {
	ID        string                 `json:"id"`
	CardID    string                 `json:"card_id"`
	Name      string                 `json:"name"`
	Type      catalog.CardType       `json:"type"`
	Cost      string                 `json:"cost,omitempty"`
	Might     int                    `json:"might,omitempty"`
	Damage    int                    `json:"damage,omitempty"`
	Exhausted bool                   `json:"exhausted,omitempty"`
	Stunned   bool                   `json:"stunned,omitempty"`
	Counters  []counters.CounterView `json:"counters,omitempty"`
	Location  Location               `json:"location"`
	Owner     string                 `json:"owner"`
}

// PublicPlayerView is what both players may see about a seat.
type PublicPlayerView struct {
	ID                string        `json:"id"`
	HandCount         int           `json:"hand_count"`
	DeckCount         int           `json:"deck_count"`
	RuneDeckCount     int           `json:"rune_deck_count"`
	Runes             []CardView    `json:"runes"`
	Base              []CardView    `json:"base"`
	Gear              []CardView    `json:"gear"`
	Effects           []CardView    `json:"effects"`
	Trash             []CardView    `json:"trash"`
	Banished          []CardView    `json:"banished"`
	Pool              resource.Pool `json:"pool"`
	TempEffects       []TempEffect  `json:"temp_effects"`
	Points            int           `json:"points"`
	BattlefieldChoice string        `json:"battlefield_choice,omitempty"`
	MulliganSubmitted bool          `json:"mulligan_submitted"`
	Conceded          bool          `json:"conceded"`
}

// SelfView adds the hidden information a player may see about themselves.
type SelfView struct {
	PublicPlayerView
	Hand               []CardView `json:"hand"`
	SideDeck           []CardView `json:"side_deck"`
	BattlefieldOptions []string   `json:"battlefield_options"`
}

// BattlefieldView is the public face of a battlefield.
type BattlefieldView struct {
	ID         string     `json:"id"`
	CardID     string     `json:"card_id"`
	Name       string     `json:"name"`
	Owner      string     `json:"owner"`
	Controller string     `json:"controller,omitempty"`
	Contesting []string   `json:"contesting,omitempty"`
	Units      []CardView `json:"units"`
}

// PlayerView is the redacted projection of a match for one player. The
// opponent's hand, deck and side deck contents are never included.
type PlayerView struct {
	MatchID        string            `json:"match_id"`
	Mode           string            `json:"mode,omitempty"`
	Seq            int64             `json:"seq"`
	Viewer         string            `json:"viewer"`
	Status         Status            `json:"status"`
	SetupStep      rules.SetupStep   `json:"setup_step"`
	SetupDeadline  time.Time         `json:"setup_deadline,omitempty"`
	CoinFlipWinner string            `json:"coin_flip_winner"`
	FirstPlayer    string            `json:"first_player,omitempty"`
	Turn           int               `json:"turn"`
	Phase          rules.Phase       `json:"phase"`
	ActivePlayer   string            `json:"active_player"`
	ChainState     rules.ChainState  `json:"chain_state"`
	Chain          []rules.ChainItem `json:"chain"`
	Window         *rules.Window     `json:"window,omitempty"`
	Battlefields   []BattlefieldView `json:"battlefields"`
	Combat         *CombatState      `json:"combat,omitempty"`
	Self           SelfView          `json:"self"`
	Opponent       PublicPlayerView  `json:"opponent"`
	Ledger         []ScoreEntry      `json:"ledger"`
	Log            []LogEntry        `json:"log"`
	Winner         string            `json:"winner,omitempty"`
	EndReason      string            `json:"end_reason,omitempty"`
}

// View returns the redacted projection for playerID.
func (e *Engine) View(playerID string) (PlayerView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return BuildView(e.state, playerID)
}

// BuildView projects st for playerID.
func BuildView(st *MatchState, playerID string) (PlayerView, error) {
	self, ok := st.Player(playerID)
	if !ok {
		return PlayerView{}, apperr.New(apperr.CodeValidation, "player %s is not in match %s", playerID, st.ID)
	}
	opp, _ := st.Player(st.Opponent(playerID))

	v := PlayerView{
		MatchID:        st.ID,
		Mode:           st.Mode,
		Seq:            st.Seq,
		Viewer:         playerID,
		Status:         st.Status,
		SetupStep:      st.SetupStep,
		SetupDeadline:  st.SetupDeadline,
		CoinFlipWinner: st.CoinFlipWinner,
		FirstPlayer:    st.FirstPlayer,
		Turn:           st.Turn.Number,
		Phase:          st.Turn.Phase,
		ActivePlayer:   st.Turn.ActivePlayer,
		ChainState:     st.Chain.State(),
		Chain:          st.Chain.List(),
		Ledger:         append([]ScoreEntry(nil), st.Ledger...),
		Log:            append([]LogEntry(nil), st.Log...),
		Winner:         st.Winner,
		EndReason:      st.EndReason,
	}
	if st.Chain.Window != nil {
		w := *st.Chain.Window
		v.Window = &w
	}
	if st.Combat != nil {
		c := *st.Combat
		v.Combat = &c
	}
	for _, b := range st.Battlefields {
		v.Battlefields = append(v.Battlefields, BattlefieldView{
			ID:         b.ID,
			CardID:     b.CardID,
			Name:       b.Name,
			Owner:      b.Owner,
			Controller: b.Controller,
			Contesting: append([]string(nil), b.Contesting...),
			Units:      cardViews(st, b.Units),
		})
	}

	v.Self = SelfView{
		PublicPlayerView:   publicView(st, self),
		Hand:               cardViews(st, self.Hand),
		SideDeck:           cardViews(st, self.SideDeck),
		BattlefieldOptions: append([]string(nil), self.BattlefieldOptions...),
	}
	v.Opponent = publicView(st, opp)
	if st.SetupStep == rules.SetupBattlefield {
		v.Opponent.BattlefieldChoice = ""
	}
	return v, nil
}

func publicView(st *MatchState, p *Player) PublicPlayerView {
	return PublicPlayerView{
		ID:                p.ID,
		HandCount:         len(p.Hand),
		DeckCount:         len(p.Deck),
		RuneDeckCount:     len(p.RuneDeck),
		Runes:             cardViews(st, p.Runes),
		Base:              cardViews(st, p.Base),
		Gear:              cardViews(st, p.Gear),
		Effects:           cardViews(st, p.Effects),
		Trash:             cardViews(st, p.Trash),
		Banished:          cardViews(st, p.Banished),
		Pool:              p.Pool.Copy(),
		TempEffects:       append([]TempEffect(nil), p.TempEffects...),
		Points:            p.Points,
		BattlefieldChoice: p.BattlefieldChoice,
		MulliganSubmitted: p.Mulligan.Submitted,
		Conceded:          p.Conceded,
	}
}

func cardViews(st *MatchState, cards []*CardInstance) []CardView {
	out := make([]CardView, 0, len(cards))
	for _, c := range cards {
		cv := CardView{
			ID:        c.ID,
			CardID:    c.CardID,
			Damage:    c.Damage,
			Exhausted: c.Exhausted,
			Counters:  c.Counters.ToView(),
			Location:  c.Location,
			Owner:     c.Owner,
		}
		if c.Card != nil {
			cv.Name = c.Card.Name
			cv.Type = c.Card.Type
			cv.Cost = c.Card.Cost
		}
		if onBoard(c) {
			cv.Might = Might(st, c)
			cv.Stunned = Stunned(st, c)
		}
		out = append(out, cv)
	}
	return out
}
