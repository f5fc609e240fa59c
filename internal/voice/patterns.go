package voice

import "regexp"

// Rule is one phrasing of an intent. Patterns run against normalized text:
// lowercase, apostrophes removed ("we're" arrives as "were"), only word
// characters, whitespace, currency symbols, '.' and ','.
type Rule struct {
	// Name is a short label used in logs and tests.
	Name string

	// Match captures the intent's fields. Capture group meaning is fixed per
	// intent; see Parser.extract. Rules whose slots may appear in either order
	// name them with (?P<title>...) and (?P<amount>...).
	Match *regexp.Regexp

	// Except vetoes the rule when it also matches. It keeps broad phrasings
	// from claiming text that belongs to an intent declared later.
	Except *regexp.Regexp
}

// matches returns the submatches of r against text, or nil.
func (r Rule) matches(text string) []string {
	m := r.Match.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if r.Except != nil && r.Except.MatchString(text) {
		return nil
	}
	return m
}

// named returns the submatch captured by the group called name in m, or "".
func (r Rule) named(m []string, name string) string {
	i := r.Match.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

// Library maps each intent to its ordered rules. It is immutable once built.
type Library struct {
	rules map[Intent][]Rule
}

// Rules returns a copy of the rules for intent in declared order.
func (l *Library) Rules(intent Intent) []Rule {
	return append([]Rule(nil), l.rules[intent]...)
}

// Len returns the total number of rules.
func (l *Library) Len() int {
	n := 0
	for _, rs := range l.rules {
		n += len(rs)
	}
	return n
}

func rule(name, match string) Rule {
	return Rule{Name: name, Match: regexp.MustCompile(match)}
}

func ruleExcept(name, match, except string) Rule {
	return Rule{Name: name, Match: regexp.MustCompile(match), Except: regexp.MustCompile(except)}
}

const (
	// money captures a number with an optional leading currency symbol.
	money = `\p{Sc}?(\d+(?:\.\d+)?)`

	// approx swallows hedges in front of an amount.
	approx = `(?:(?:about|around|roughly)\s+)?`

	// budgetAmount is money with its number in the named "amount" slot.
	budgetAmount = `\p{Sc}?(?P<amount>\d+(?:\.\d+)?)`

	// budgetTail optionally captures "with a budget of N" at the end of a run request.
	budgetTail = `(?:\s+with(?:\s+a)?\s+budget\s+of\s+` + approx + budgetAmount + `)?`

	// titleTail optionally captures "for|called|named <title>".
	titleTail = `(?:\s+(?:for|called|named)\s+(?P<title>.+?))?`

	listTarget = `(?:\s+(?:to|on)\s+(?:the\s+|my\s+)?(?:shopping\s+)?(?:list|cart))?`
)

// DefaultLibrary builds the built-in phrasing table.
func DefaultLibrary() *Library {
	return &Library{rules: map[Intent][]Rule{
		IntentCreateRun: {
			rule("lets-go-shopping",
				`\b(?:lets|let me|im gonna|im going to|i need to|time to)\s+(?:go\s+)?(?:grocery\s+)?(?:shopping|shop|to\s+the\s+(?:store|market|grocery))`+titleTail+budgetTail+`$`),
			rule("new-list",
				`\b(?:start|create|make|new)\s+(?:a\s+)?(?:new\s+)?(?:shopping\s+)?(?:list|run)\b`+titleTail+budgetTail+`$`),
			rule("new-list-budget-first",
				`\b(?:start|create|make|new)\s+(?:a\s+)?(?:new\s+)?(?:shopping\s+)?(?:list|run)\s+with(?:\s+a)?\s+budget\s+of\s+`+approx+budgetAmount+titleTail+`$`),
			rule("heading-to-store",
				`\b(?:im\s+)?(?:going|heading)\s+(?:to\s+the\s+)?(?:store|market|grocery|supermarket)\b`+titleTail+budgetTail+`$`),
			rule("shopping-trip",
				`^(?:(?:its|lets\s+go\s+on\s+a|going\s+on\s+a)\s+)?shopping\s+(?:time|trip)\b`+titleTail+budgetTail+`$`),
			rule("need-to-shop",
				`\b(?:i\s+)?(?:need|want)\s+to\s+(?:go\s+)?(?:shopping|shop)\b`+titleTail+budgetTail+`$`),
		},

		IntentAddItem: {
			rule("need-to-get",
				`\b(?:(?:we|i)\s+)?(?:need|want)\s+to\s+(?:get|buy|pick\s+up)\s+(?:some\s+)?(.+)`),
			ruleExcept("need",
				`\b(?:need|want|gotta\s+get|have\s+to\s+get|should\s+get)\s+(?:some\s+)?(.+)`,
				`\b(?:dont|do\s+not|no\s+longer)\s+(?:need|want)\b|^(?:what|how|do)\b`),
			rule("can-you-add",
				`\bcan\s+(?:you\s+)?(?:add|put)\s+(.+?)`+listTarget+`$`),
			ruleExcept("add",
				`\b(?:add|put|include)\s+(.+?)`+listTarget+`$`,
				`^(?:add|put)\s+(?:a\s+)?note\b`),
			rule("out-of",
				`\b(?:(?:im|were)\s+)?(?:out\s+of|running\s+low\s+on|almost\s+out\s+of)\s+(.+)`),
			rule("lets-get",
				`\blets\s+(?:get|grab|pick\s+up)\s+(?:some\s+)?(.+)`),
			rule("dont-forget",
				`\b(?:dont\s+forget|remember\s+to\s+get)\s+(?:the\s+)?(.+)`),
			rule("while-there",
				`\bwhile\s+(?:im|were)\s+(?:there|at\s+it|shopping),?\s+(?:get|grab|pick\s+up)\s+(?:some\s+)?(.+)`),
			rule("get",
				`^(?:oh,?\s+)?(?:and\s+)?(?:also\s+)?(?:get|grab|buy|pick\s+up)\s+(?:some\s+)?(.+)`),
			ruleExcept("please",
				`^(.+?)\s+(?:please|too|as\s+well)$`,
				`\b(?:costs?|priced|is|was|should\s+be)\b`),
		},

		IntentCompleteItem: {
			ruleExcept("got",
				`\b(?:i\s+)?(?:got|found|picked\s+up|grabbed|bought)\s+(?:the\s+|some\s+)?(.+)`,
				`\b(?:got|have)\s+everything\b|\bgot\s+`+approx+`\p{Sc}`),
			rule("mark-as-done",
				`\bmark\s+(?:the\s+)?(.+?)\s+as\s+(?:done|complete|completed|bought|found)$`),
			rule("check-off",
				`\b(?:check|mark|cross)\s+off\s+(?:the\s+)?(.+)`),
			rule("thats-done",
				`\bthats\s+(?:the\s+)?(.+?)\s+(?:done|finished|complete)$`),
			ruleExcept("is-done",
				`^(?:the\s+)?(.+?)\s+(?:(?:is|are)\s+)?(?:done|complete|finished|checked\s+off|in\s+the\s+cart)$`,
				`^(?:im|i\s+am|were|we\s+are|all|(?:the\s+)?(?:shopping\s+)?(?:trip|run|list))\b`),
			rule("already-got",
				`\balready\s+got\s+(?:the\s+)?(.+)`),
			rule("trailing-check",
				`^(?:the\s+)?(.+?)\s+check$`),
		},

		IntentRemoveItem: {
			ruleExcept("dont-need",
				`\b(?:dont|do\s+not)\s+(?:need|want)\s+(?:the\s+|any\s+)?(.+?)(?:\s+anymore)?$`,
				`\bspend\b`),
			rule("no-longer-need",
				`\b(?:no\s+longer\s+need|changed\s+my\s+mind\s+about)\s+(?:the\s+)?(.+)`),
			rule("remove",
				`\b(?:remove|delete|take\s+off)\s+(?:the\s+)?(.+?)(?:\s+from\s+(?:the\s+|my\s+)?(?:list|cart))?$`),
			rule("skip",
				`\b(?:actually,?\s+)?skip\s+(?:the\s+)?(.+)`),
			rule("forget",
				`\b(?:forget|cancel)\s+(?:about\s+)?(?:the\s+)?(.+)`),
			rule("already-have",
				`\b(?:we|i)\s+already\s+have\s+(?:enough\s+)?(.+)`),
		},

		IntentAddNote: {
			rule("add-note",
				`\badd\s+(?:a\s+)?note\s+(?:to|for|on)\s+(?:the\s+)?(.+?)(?:(?:\s*,\s*|\s+saying\s+|\s+that\s+says\s+)(.+))?$`),
			rule("note-for",
				`\b(?:note|remember)\s+for\s+(?:the\s+)?(.+?)(?:\s*,\s*(.+))?$`),
			rule("make-sure",
				`\b(?:make\s+sure|remember)\s+(?:that\s+)?(?:the\s+)?(.+?)\s+(?:is|are|has|have|needs\s+to\s+be)\s+(.+)`),
			rule("for-the",
				`^(?:for\s+the\s+)?(.+?),?\s+(?:make\s+sure|note)\s+(.+)$`),
		},

		IntentSetPrice: {
			rule("should-be",
				`^(?:the\s+)?(.+?)\s+(?:should\s+be|usually\s+costs?)\s+`+approx+money),
			ruleExcept("costs",
				`^(?:the\s+)?(.+?)\s+(?:costs?|is|was|priced\s+at)\s+`+approx+money,
				`\b(?:budget|limit|max)\b`),
			rule("expect-for",
				`\b(?:expect|budget)\s+`+approx+money+`\s+for\s+(?:the\s+)?(.+)`),
			rule("amount-for",
				`^`+approx+money+`\s+(?:dollars\s+|bucks\s+)?(?:each\s+)?for\s+(?:the\s+)?(.+)`),
		},

		IntentSetBudget: {
			rule("budget-is",
				`\b(?:i\s+(?:have|got|can\s+spend)|(?:my|our|the)\s+budget\s+is|budget\s+of)\s+`+approx+money),
			rule("set-budget",
				`\bset\s+(?:the\s+|my\s+|a\s+)?budget\s+(?:to\s+|at\s+|of\s+)?`+money),
			rule("keep-under",
				`\btrying\s+to\s+(?:spend|keep\s+it)\s+(?:under|below)\s+`+money),
			rule("spend-no-more",
				`\bdont\s+want\s+to\s+spend\s+more\s+than\s+`+money),
			rule("limit",
				`\b(?:limit|max)\s+(?:is|of)\s+`+money),
			rule("planning-to-spend",
				`\bplanning\s+to\s+spend\s+`+approx+money),
		},

		IntentCompleteRun: {
			rule("done",
				`^(?:im\s+|were\s+|i\s+am\s+)?(?:done|finished)(?:\s+shopping|\s+with\s+(?:the\s+)?(?:shopping|list|trip|run))?$`),
			rule("thats-all",
				`^(?:thats\s+)?(?:everything|all)(?:\s+(?:i\s+need|on\s+(?:the\s+)?list|for\s+today))?$`),
			rule("checkout",
				`\b(?:ready\s+to\s+)?(?:checkout|check\s+out|head\s+(?:to\s+)?(?:checkout|the\s+register))\b`),
			rule("trip-complete",
				`\b(?:shopping\s+)?(?:trip|run)\s+(?:is\s+)?(?:complete|done|finished)\b`),
			rule("finish-run",
				`\b(?:complete|finish|end)\s+(?:the\s+|this\s+|my\s+)?(?:shopping\s+)?(?:trip|run)\b`),
			rule("time-to-pay",
				`\b(?:time\s+to\s+)?(?:pay|go\s+to\s+checkout)\b`),
			rule("all-set",
				`\b(?:got\s+everything|all\s+done|all\s+set)\b`),
		},

		IntentListItems: {
			rule("what-do-we-need",
				`\b(?:what\s+)?do\s+(?:i|we)\s+(?:still\s+)?(?:need|have\s+to\s+get|gotta\s+get)\b`),
			rule("whats-on-list",
				`\b(?:whats|what\s+is)\s+(?:still\s+)?(?:on\s+(?:the\s+|my\s+)?(?:list|agenda)|left(?:\s+to\s+(?:get|buy))?)\b`),
			rule("show-list",
				`\b(?:show|tell|read)\s+(?:me\s+)?(?:the\s+|my\s+)?(?:list|what\s+(?:i|we)\s+need)\b`),
			rule("anything-else",
				`\b(?:what|anything)\s+else\b`),
			rule("remaining",
				`\b(?:list|what)\s+(?:do\s+(?:i|we)\s+have\s+)?(?:left|remaining)\b`),
		},

		IntentBudgetStatus: {
			rule("money-left",
				`\bhow\s+much\s+(?:money\s+)?(?:do\s+(?:i|we)\s+have\s+left|is\s+left)\b`),
			rule("whats-budget",
				`\b(?:whats|what\s+is)\s+(?:my|our|the)\s+(?:budget|spending)\b`),
			rule("how-doing",
				`\bhow\s+(?:am\s+i|are\s+we)\s+doing\b`),
			rule("on-budget",
				`\b(?:am\s+i|are\s+we)\s+(?:still\s+)?(?:on|within|under|over)\s+budget\b`),
			rule("spent",
				`\bhow\s+much\s+(?:have\s+(?:i|we)\s+spent|money\s+spent)\b`),
		},
	}}
}
