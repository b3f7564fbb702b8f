package classifier

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_TaskTypes(t *testing.T) {
	c := New()

	tests := []struct {
		name  string
		input string
		want  TaskType
	}{
		{"quick what-is question", "What is 2+2?", TaskQuick},
		{"coding traceback", "Please debug this Python function, it throws a traceback", TaskCoding},
		{"coding keywords", "refactor the code so the function is easier to test", TaskCoding},
		{"creative poem", "Write a poem about autumn leaves falling in the quiet forest", TaskCreative},
		{"adult marker", "Write me something nsfw about the beach", TaskAdult},
		{"document summary", "Summarize this document for me", TaskDocumentAnalysis},
		{"analysis compare", "Compare PostgreSQL and MySQL for a write-heavy workload", TaskAnalysis},
		{"math solve", "Solve for x: 3x + 5 = 20", TaskMath},
		{"general fallback", "Tell me about the history of Rome", TaskGeneral},
		{"single keyword is not enough", "I love this song", TaskGeneral},
		{"empty input", "", TaskGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.input)
			assert.Equal(t, tt.want, got.TaskType)
		})
	}
}

func TestClassify_QuickArithmetic(t *testing.T) {
	p := New().Classify("What is 2+2?")

	assert.Equal(t, TaskQuick, p.TaskType)
	assert.True(t, p.RequiresSpeed)
	assert.Less(t, p.Complexity, 0.5)
	assert.InDelta(t, 0.2, p.Complexity, 1e-9)
	assert.False(t, p.IsSensitive)
	assert.Empty(t, p.DetectedLanguages)
}

func TestClassify_SensitiveMarkerAnyCategory(t *testing.T) {
	c := New()

	inputs := []string{
		"debug this code, the function crashes inside the nsfw filter",
		"tell me a joke, nsfw is fine",
		"NSFW",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.True(t, c.Classify(in).IsSensitive)
		})
	}

	coding := c.Classify(inputs[0])
	assert.Equal(t, TaskCoding, coding.TaskType, "category is unaffected by the sensitive marker")
}

func TestClassify_GenerateImageIsSensitive(t *testing.T) {
	p := New().Classify("Generate a picture of a person on the beach")
	assert.True(t, p.IsSensitive)

	p = New().Classify("Generate a list of Go proverbs")
	assert.False(t, p.IsSensitive)
}

func TestClassify_Flags(t *testing.T) {
	c := New()

	coding := c.Classify("Please debug this Python function, it throws a traceback")
	assert.True(t, coding.RequiresAccuracy)
	assert.False(t, coding.RequiresCreativity)
	assert.InDelta(t, 0.5, coding.Complexity, 1e-9) // short input, coding boost

	creative := c.Classify("Write a poem about autumn leaves falling in the quiet forest")
	assert.True(t, creative.RequiresCreativity)
	assert.Equal(t, 29, creative.EstimatedTokens) // 11 words * 1.3 * 2
	assert.InDelta(t, 0.6, creative.Complexity, 1e-9)

	accuracy := c.Classify("Give me the exact boiling point of water at sea level in kelvin please")
	assert.True(t, accuracy.RequiresAccuracy)

	speed := c.Classify(strings.Repeat("context ", 20) + "answer quickly")
	assert.True(t, speed.RequiresSpeed, "speed trigger applies regardless of length")

	slow := c.Classify(strings.Repeat("context ", 20))
	assert.False(t, slow.RequiresSpeed)
}

func TestClassify_ComplexityBuckets(t *testing.T) {
	c := New()

	tests := []struct {
		name  string
		words int
		want  float64
	}{
		{"short", 5, 0.3},
		{"medium", 20, 0.5},
		{"long", 60, 0.7},
		{"very long", 120, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(strings.TrimSpace(strings.Repeat("lorem ", tt.words)))
			assert.Equal(t, TaskGeneral, p.TaskType)
			assert.InDelta(t, tt.want, p.Complexity, 1e-9)
		})
	}
}

func TestClassify_WholeWordKeywords(t *testing.T) {
	p := New().Classify("classical music programs")

	assert.Equal(t, TaskGeneral, p.TaskType)
	assert.NotContains(t, p.Keywords, "class")
	assert.NotContains(t, p.Keywords, "program")
}

func TestClassify_KeywordsDeduplicated(t *testing.T) {
	p := New().Classify("quick quick question, quickly")

	assert.Equal(t, TaskQuick, p.TaskType)
	assert.Equal(t, []string{"quick", "quickly"}, p.Keywords)
	assert.True(t, p.HasKeyword("quickly"))
}

func TestClassify_DetectedLanguagesSorted(t *testing.T) {
	p := New().Classify("convert this python script to golang and add a SQL migration")
	assert.Equal(t, []string{"go", "python", "sql"}, p.DetectedLanguages)
}

func TestClassifyWithMatches(t *testing.T) {
	p, matches := New().ClassifyWithMatches("What is a goroutine?")

	assert.Equal(t, TaskQuick, p.TaskType)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0], "quick:")
}

func TestProperty_ComplexityBounded(t *testing.T) {
	c := New()
	properties := gopter.NewProperties(nil)

	properties.Property("complexity stays within [0,1]", prop.ForAll(
		func(repeat int, filler string, seed string) bool {
			text := strings.Repeat(seed+" "+filler+" ", repeat)
			p := c.Classify(text)
			return p.Complexity >= 0 && p.Complexity <= 1 && p.EstimatedTokens >= 0
		},
		gen.IntRange(0, 150),
		gen.AlphaString(),
		gen.OneConstOf("debug the code", "write a poem", "what is", "summarize this document", "compare a and b", "solve for x", "nsfw", "quickly"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_Deterministic(t *testing.T) {
	c := New()
	properties := gopter.NewProperties(nil)

	properties.Property("same text yields the same profile", prop.ForAll(
		func(text string) bool {
			a := c.Classify(text)
			b := c.Classify(text)
			return assert.ObjectsAreEqual(a, b)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
