// Package i18n tracks the active UI locale and the document language tag
// derived from it.
package i18n

import (
	"fmt"
	"strings"
	"sync"
)

const DefaultLocale = "zh-CN"

// Persister stores the chosen locale across runs.
type Persister interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
}

const storageKey = "app_locale"

type Locale struct {
	store Persister

	mu      sync.Mutex
	current string
	docLang string
}

// New restores the persisted locale, falling back to DefaultLocale. A nil
// store keeps the locale in memory only.
func New(store Persister) (*Locale, error) {
	l := &Locale{store: store, current: DefaultLocale}
	if store != nil {
		v, ok, err := store.GetString(storageKey)
		if err != nil {
			return nil, fmt.Errorf("load locale: %w", err)
		}
		if ok && v != "" {
			l.current = v
		}
	}
	l.docLang = DocumentLang(l.current)
	return l, nil
}

// DocumentLang maps a locale to the document language attribute: Chinese
// variants keep their tag, everything else is "en".
func DocumentLang(locale string) string {
	if strings.HasPrefix(locale, "zh") {
		return locale
	}
	return "en"
}

func (l *Locale) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Locale) DocumentLang() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.docLang
}

// Switch activates lang and persists it. Switching to the active locale is a
// no-op. The locale stays switched even when persisting fails.
func (l *Locale) Switch(lang string) error {
	l.mu.Lock()
	if l.current == lang {
		l.mu.Unlock()
		return nil
	}
	l.current = lang
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SetString(storageKey, lang); err != nil {
			return fmt.Errorf("persist locale %s: %w", lang, err)
		}
	}

	l.mu.Lock()
	l.docLang = DocumentLang(lang)
	l.mu.Unlock()
	return nil
}
