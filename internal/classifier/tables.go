package classifier

import "regexp"

// ═══════════════════════════════════════════════════════════════════════════════
// CATEGORY TABLE
// ═══════════════════════════════════════════════════════════════════════════════

// category is one row of the ordered classification table.
type category struct {
	taskType        TaskType
	keywords        []string
	patterns        []*regexp.Regexp
	complexityBoost float64
}

// buildCategories returns the classification table. Order matters: the first
// category that reaches the hit threshold wins.
func buildCategories() []category {
	return []category{
		{
			taskType: TaskCoding,
			keywords: []string{
				"code", "function", "debug", "program", "programming", "script",
				"class", "method", "bug", "compile", "compiler", "algorithm",
				"refactor", "implement", "syntax", "variable", "api", "endpoint",
				"stack trace", "unit test", "regex", "repository", "deploy",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile("```"),
				regexp.MustCompile(`\b(def|func|fn|function)\s+\w+\s*\(`),
				regexp.MustCompile(`\b(write|create|implement|build)\s+(a|an|the|me)?\s*(\w+\s+){0,2}(function|class|script|program|module|method)\b`),
				regexp.MustCompile(`\b(fix|debug)\s+(this|my|the)\s+(code|bug|error|function|script)\b`),
				regexp.MustCompile(`\b(traceback|segmentation fault|nullpointerexception|undefined is not a function)\b`),
			},
			complexityBoost: 0.2,
		},
		{
			taskType: TaskCreative,
			keywords: []string{
				"story", "poem", "poetry", "creative", "imagine", "fiction",
				"character", "novel", "lyrics", "song", "narrative", "fantasy",
				"plot", "haiku", "screenplay", "roleplay",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bwrite\s+(me\s+)?(a|an)\s+(\w+\s+)?(story|poem|song|haiku|limerick|novel|screenplay)\b`),
				regexp.MustCompile(`\bonce\s+upon\s+a\s+time\b`),
				regexp.MustCompile(`\b(role\s*-?\s*play|pretend\s+(you\s+are|to\s+be))\b`),
			},
			complexityBoost: 0.1,
		},
		{
			taskType: TaskAdult,
			keywords: []string{
				"nsfw", "explicit", "erotic", "erotica", "sexual", "nude",
				"porn", "xxx", "fetish", "adult content", "uncensored",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bnsfw\b`),
				regexp.MustCompile(`(^|\s)(18\+|x-rated|r-rated)(\s|$)`),
			},
			complexityBoost: 0.0,
		},
		{
			taskType: TaskDocumentAnalysis,
			keywords: []string{
				"document", "pdf", "summarize", "summarise", "summary", "extract",
				"report", "contract", "attachment", "attached", "paper", "spreadsheet",
				"tl;dr", "key points",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(summari[sz]e|analy[sz]e|review)\s+(this|the|these|attached|my)\s+(document|pdf|file|report|paper|contract|text)s?\b`),
				regexp.MustCompile(`\b(in|from)\s+(this|the|attached)\s+(document|pdf|file|report|paper)\b`),
				regexp.MustCompile(`\btl;?dr\b`),
			},
			complexityBoost: 0.2,
		},
		{
			taskType: TaskAnalysis,
			keywords: []string{
				"analyze", "analyse", "analysis", "compare", "comparison", "evaluate",
				"assess", "assessment", "pros and cons", "trade-off", "tradeoff",
				"implications", "research", "investigate", "reasoning", "critique",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(compare|contrast)\s+.+\s+(and|with|to|vs\.?|versus)\s+`),
				regexp.MustCompile(`\bpros\s+and\s+cons\b`),
				regexp.MustCompile(`\bwhat\s+are\s+the\s+(implications|differences|trade-?offs|consequences)\b`),
				regexp.MustCompile(`\b(in-depth|detailed|thorough)\s+(analysis|review|breakdown)\b`),
			},
			complexityBoost: 0.2,
		},
		{
			taskType: TaskMath,
			keywords: []string{
				"calculate", "equation", "solve", "integral", "derivative",
				"probability", "theorem", "proof", "algebra", "matrix",
				"statistics", "compute", "geometry", "calculus", "logarithm",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bsolve\s+(for\s+)?[a-z]\b`),
				regexp.MustCompile(`\b(integral|derivative|limit)\s+of\b`),
				regexp.MustCompile(`\b(square|cube)\s+root\b`),
				regexp.MustCompile(`\b[a-z]\s*\^\s*\d`),
				regexp.MustCompile(`\d+\s*[a-z]\s*[+\-]\s*\d+\s*=`),
				regexp.MustCompile(`[∫∑√π]`),
			},
			complexityBoost: 0.1,
		},
		{
			taskType: TaskQuick,
			keywords: []string{
				"quick", "quickly", "brief", "briefly", "simple", "define",
				"definition", "yes or no", "one word", "short answer",
			},
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`^what\s+is\b`),
				regexp.MustCompile(`^(who|when|where)\s+(is|was|are|were|did)\b`),
				regexp.MustCompile(`^(define|translate)\b`),
				regexp.MustCompile(`^how\s+(many|much|old|far|long)\b`),
			},
			complexityBoost: -0.1,
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TRIGGER SETS
// ═══════════════════════════════════════════════════════════════════════════════

var creativityTriggers = []string{
	"creative", "imaginative", "story", "poem", "fiction", "invent",
	"brainstorm", "original", "artistic", "whimsical", "inspire",
}

var accuracyTriggers = []string{
	"accurate", "accuracy", "precise", "exact", "exactly", "correct",
	"verify", "fact", "facts", "factual", "citation", "rigorous",
	"step by step", "double-check",
}

var speedTriggers = []string{
	"quick", "quickly", "fast", "brief", "briefly", "asap", "urgent",
	"short", "in one sentence", "one-liner",
}

var sensitiveKeywords = []string{
	"nsfw", "explicit", "erotic", "erotica", "sexual", "sex", "nude",
	"nudity", "naked", "porn", "pornographic", "xxx", "fetish", "hentai",
	"adult content", "uncensored", "unfiltered", "jailbreak", "gore",
	"violent", "violence", "drugs", "narcotics", "weapon", "weapons",
	"explosive", "suicide", "self-harm", "kill", "murder", "torture",
	"racist", "slur", "hate speech", "lewd", "seductive", "provocative",
	"onlyfans", "escort", "bdsm", "kink",
}

// generateNouns make a request sensitive when combined with "generate".
var generateNouns = []string{
	"image", "picture", "photo", "portrait", "person", "woman", "man",
	"girl", "boy", "body", "face", "selfie", "model",
}

// ═══════════════════════════════════════════════════════════════════════════════
// LANGUAGE DETECTION
// ═══════════════════════════════════════════════════════════════════════════════

var languagePatterns = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`\bpython\b|\bdef\s+\w+\s*\(|\bpip\s+install\b|\w\.py\b`),
	"go":         regexp.MustCompile(`\bgolang\b|\bfunc\s+(\(\w+\s+\*?\w+\)\s+)?\w+\s*\(|\bpackage\s+main\b|\bgo\s+(mod|build|run|test)\b`),
	"javascript": regexp.MustCompile(`\bjavascript\b|\bnode\.?js\b|\bconsole\.log\b|\bnpm\s+install\b|\w\.js\b`),
	"typescript": regexp.MustCompile(`\btypescript\b|\binterface\s+\w+\s*\{|\w\.tsx?\b`),
	"rust":       regexp.MustCompile(`\brust\b|\bfn\s+\w+\s*\(|\bcargo\s+(build|run|test|add)\b|\blet\s+mut\b`),
	"java":       regexp.MustCompile(`\bjava\b|\bpublic\s+static\s+void\b|\bsystem\.out\.println\b|\w\.java\b`),
	"c++":        regexp.MustCompile(`c\+\+|\bcpp\b|#include\s*<|\bstd::`),
	"c#":         regexp.MustCompile(`c#|\bcsharp\b|\bdotnet\b|\busing\s+system;`),
	"sql":        regexp.MustCompile(`\bsql\b|\bselect\s+[\w*,\s]+\s+from\s+\w+|\binsert\s+into\b|\bcreate\s+table\b`),
	"bash":       regexp.MustCompile(`\bbash\b|\bshell\s+script\b|#!/bin/(ba)?sh|\bchmod\s+[+0-7]`),
	"ruby":       regexp.MustCompile(`\bruby\b|\brails\b|\w\.rb\b`),
	"php":        regexp.MustCompile(`\bphp\b|<\?php`),
	"kotlin":     regexp.MustCompile(`\bkotlin\b|\bfun\s+\w+\s*\(`),
	"swift":      regexp.MustCompile(`\bswiftui\b|\bswift\s+(code|function|app|language)\b|\bfunc\s+\w+\s*\([^)]*\)\s*->`),
}
