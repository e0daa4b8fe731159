// Package passive decides the bot's unprompted replies to ordinary chat
// messages.
package passive

import (
	"math/rand"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	greetingMaxLen = 50
	allegedlyOdds  = 0.0001
)

type Input struct {
	Text        string
	ChannelName string
	AuthorName  string
}

type Response struct {
	Text string
	// Reply threads the response under the triggering message.
	Reply bool
}

type Responder struct {
	OpenDoorMessage string
	Greetings       []string
	BotName         string
	// Rand returns a value in [0, 1). Defaults to math/rand.
	Rand func() float64
}

// Respond returns zero, one or two responses. The door and link rules are
// checked first, then at most one of greeting, "no u" or the rare aside.
func (r *Responder) Respond(in Input) []Response {
	clean := strings.ToLower(in.Text)
	words := strings.Split(clean, " ")
	var out []Response

	switch {
	case (hasWord(words, "door") || hasWord(words, "room")) &&
		(hasWord(words, "can") || hasWord(words, "open") || hasWord(words, "lock") || hasWord(words, "locked")):
		if r.OpenDoorMessage != "" {
			out = append(out, Response{Text: r.OpenDoorMessage, Reply: true})
		}
	case strings.Contains(clean, "www.amazon.com"):
		link := strings.Replace(strings.TrimSpace(in.Text), "www.amazon.com", "smile.amazon.com", 1)
		out = append(out, Response{
			Text:  "Consider using a `smile.amazon.com` link instead to donate 0.5% to a charity: " + link + " :slightly_smiling_face:",
			Reply: true,
		})
	}

	if g, ok := r.greeting(clean); ok && utf8.RuneCountInString(clean) < greetingMaxLen {
		out = append(out, Response{Text: capitalize(g) + " " + in.AuthorName})
	} else if isNoU(clean) {
		if in.ChannelName != "general" {
			out = append(out, Response{Text: "no u"})
		}
	} else if r.random() < allegedlyOdds {
		out = append(out, Response{Text: "Allegedly"})
	}
	return out
}

func (r *Responder) greeting(clean string) (string, bool) {
	bot := strings.ToLower(r.BotName)
	for _, g := range r.Greetings {
		if clean == g {
			return g, true
		}
		if bot != "" && strings.Contains(clean, g) && strings.Contains(clean, bot) {
			return g, true
		}
	}
	return "", false
}

func (r *Responder) random() float64 {
	if r.Rand != nil {
		return r.Rand()
	}
	return rand.Float64()
}

func isNoU(clean string) bool {
	return clean == "no u" || strings.HasSuffix(clean, " no u") || strings.Contains(clean, " no u ")
}

func hasWord(words []string, w string) bool {
	for _, word := range words {
		if word == w {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LoadGreetings reads one lowercase greeting per line. Blank lines are
// skipped.
func LoadGreetings(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
