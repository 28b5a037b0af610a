package event

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"cultivationworld.ai/internal/protocol"
)

// AvatarIDToColor derives a stable HSL color from an avatar id. Different ids
// may collide; the same id always yields the same color.
func AvatarIDToColor(id string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(id)) {
		hash = (hash << 5) - hash + int32(unit)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("hsl(%d, 70%%, 65%%)", h%360)
}

type AvatarColorInfo struct {
	ID    string
	Color string
}

// BuildAvatarColorMap indexes named avatars by display name.
func BuildAvatarColorMap(avatars []protocol.AvatarSummary) map[string]AvatarColorInfo {
	out := make(map[string]AvatarColorInfo, len(avatars))
	for _, av := range avatars {
		if av.Name == "" {
			continue
		}
		out[av.Name] = AvatarColorInfo{ID: av.ID, Color: AvatarIDToColor(av.ID)}
	}
	return out
}

type TokenKind string

const (
	TokenText   TokenKind = "text"
	TokenAvatar TokenKind = "avatar"
)

type Token struct {
	Kind     TokenKind
	Text     string
	AvatarID string
	Color    string
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// namePattern matches any known name, preferring longer names so that a
// name never matches inside a longer one that contains it.
func namePattern(colors map[string]AvatarColorInfo) *regexp.Regexp {
	names := make([]string, 0, len(colors))
	for n := range colors {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(names[i]), utf8.RuneCountInString(names[j])
		if li != lj {
			return li > lj
		}
		return names[i] < names[j]
	})
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(strings.Join(names, "|"))
}

// TokenizeEventContent splits text into plain and avatar-name tokens in a
// single left-to-right scan.
func TokenizeEventContent(text string, colors map[string]AvatarColorInfo) []Token {
	if text == "" {
		return nil
	}
	if len(colors) == 0 {
		return []Token{{Kind: TokenText, Text: text}}
	}

	var tokens []Token
	last := 0
	for _, loc := range namePattern(colors).FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > last {
			tokens = append(tokens, Token{Kind: TokenText, Text: text[last:start]})
		}
		matched := text[start:end]
		if info, ok := colors[matched]; ok {
			tokens = append(tokens, Token{Kind: TokenAvatar, Text: matched, AvatarID: info.ID, Color: info.Color})
		} else {
			tokens = append(tokens, Token{Kind: TokenText, Text: matched})
		}
		last = end
	}
	if last < len(text) {
		tokens = append(tokens, Token{Kind: TokenText, Text: text[last:]})
	}
	return tokens
}

// HighlightAvatarNames renders text as escaped HTML with each avatar name
// wrapped in a clickable span.
func HighlightAvatarNames(text string, colors map[string]AvatarColorInfo) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	for _, tok := range TokenizeEventContent(text, colors) {
		if tok.Kind == TokenAvatar {
			fmt.Fprintf(&b, `<span class="clickable-avatar" data-avatar-id="%s" style="color:%s;cursor:pointer">%s</span>`,
				EscapeHTML(tok.AvatarID), tok.Color, EscapeHTML(tok.Text))
			continue
		}
		b.WriteString(EscapeHTML(tok.Text))
	}
	return b.String()
}
