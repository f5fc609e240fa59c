package voice

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/martruns/martruns/internal/market"
)

var (
	stripRe    = regexp.MustCompile(`[^\w\s\p{Sc}.,]`)
	collapseRe = regexp.MustCompile(`\s+`)
	numberRe   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// Normalize lowercases input, drops everything except word characters,
// whitespace, currency symbols, '.' and ',' and collapses whitespace. Trailing
// sentence punctuation added by recognizers is trimmed.
func Normalize(input string) string {
	s := strings.ToLower(input)
	s = stripRe.ReplaceAllString(s, "")
	s = collapseRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " .,")
}

// Parser classifies utterances against a Library.
type Parser struct {
	lib *Library
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used for default run titles.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithLibrary replaces the built-in phrasing table.
func WithLibrary(lib *Library) Option {
	return func(p *Parser) { p.lib = lib }
}

// NewParser returns a Parser over DefaultLibrary.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.lib == nil {
		p.lib = DefaultLibrary()
	}
	return p
}

// Match reports which intent and rule claim the normalized text. It returns
// IntentUnknown and a zero Rule when nothing matches.
func (p *Parser) Match(normalized string) (Intent, Rule, []string) {
	for _, intent := range Intents {
		for _, r := range p.lib.rules[intent] {
			if m := r.matches(normalized); m != nil {
				return intent, r, m
			}
		}
	}
	return IntentUnknown, Rule{}, nil
}

// Parse turns raw input into a Command. It never fails; unmatched input
// yields an unknown command with zero confidence.
func (p *Parser) Parse(input string, cctx Context) Command {
	text := Normalize(input)
	intent, r, m := p.Match(text)
	if intent == IntentUnknown {
		return Command{Intent: IntentUnknown, Context: text}
	}

	cmd := p.extract(intent, r, m, cctx)
	cmd.Context = text
	cmd.Confidence = Score(cmd, cctx)
	return cmd
}

// ParseAlternatives parses every alternative transcript concurrently and
// returns the most confident command. Earlier alternatives win ties.
func (p *Parser) ParseAlternatives(ctx context.Context, alts []string, cctx Context) (Command, error) {
	if len(alts) == 0 {
		return Command{Intent: IntentUnknown}, nil
	}

	cmds := make([]Command, len(alts))
	g, gctx := errgroup.WithContext(ctx)
	for i, alt := range alts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cmds[i] = p.Parse(alt, cctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Command{}, err
	}

	best := cmds[0]
	for _, c := range cmds[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best, nil
}

func (p *Parser) extract(intent Intent, r Rule, m []string, cctx Context) Command {
	cmd := Command{Intent: intent}
	group := func(i int) string {
		if i < len(m) {
			return strings.Trim(m[i], " ,.")
		}
		return ""
	}

	switch intent {
	case IntentCreateRun:
		// Slots are named because title and budget may come in either order.
		cmd.Entity = strings.Trim(r.named(m, "title"), " ,.")
		if v, ok := parseAmount(r.named(m, "amount")); ok {
			cmd.Amount = v
		}
		if cmd.Entity == "" {
			cmd.Entity = market.DefaultTitle(p.now())
		}

	case IntentAddItem:
		raw := group(1)
		cmd.Entity = CleanItemName(raw)
		cmd.Amount = ExtractQuantity(raw)

	case IntentCompleteItem, IntentRemoveItem:
		cmd.Entity = ResolveItemName(CleanItemName(group(1)), cctx.CurrentRun)

	case IntentAddNote:
		cmd.Entity = ResolveItemName(CleanItemName(group(1)), cctx.CurrentRun)
		cmd.Note = group(2)

	case IntentSetPrice:
		// "milk costs 3" captures (entity, amount); "3 for milk" the reverse.
		first, second := group(1), group(2)
		if v, ok := parseAmount(second); ok {
			cmd.Entity, cmd.Amount = CleanItemName(first), v
		} else if v, ok := parseAmount(first); ok {
			cmd.Entity, cmd.Amount = CleanItemName(second), v
		}
		cmd.Entity = ResolveItemName(cmd.Entity, cctx.CurrentRun)

	case IntentSetBudget:
		v, ok := parseAmount(group(1))
		if !ok {
			zero := 0.0
			v = &zero
		}
		cmd.Amount = v
	}

	return cmd
}

func parseAmount(s string) (*float64, bool) {
	if !numberRe.MatchString(s) {
		return nil, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
