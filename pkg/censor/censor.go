// Package censor flags comment text containing banned words.
package censor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

type Word struct {
	Text       string   `json:"text"`
	Pattern    string   `json:"pattern"`
	Exceptions []string `json:"exceptions"`

	regexPattern *regexp.Regexp
}

type Censor struct {
	bannedWords []Word
}

// New returns an empty Censor that lets everything through.
func New() *Censor {
	return &Censor{}
}

// LoadFromJSON loads banned words from a JSON file and compiles regexes.
func (c *Censor) LoadFromJSON(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.Load(f)
}

func (c *Censor) Load(r io.Reader) error {
	var words []Word
	if err := json.NewDecoder(r).Decode(&words); err != nil {
		return fmt.Errorf("failed to decode banned words: %w", err)
	}

	for i, word := range words {
		re, err := regexp.Compile(word.Pattern)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %q: %w", word.Pattern, err)
		}
		words[i].regexPattern = re
	}

	c.bannedWords = words
	return nil
}

func (c *Censor) Len() int {
	return len(c.bannedWords)
}

// lookalikes maps characters used to dodge the filter to the latin letters they
// imitate.
var lookalikes = strings.NewReplacer(
	// cyrillic
	"а", "a", "с", "c", "е", "e", "о", "o", "р", "p", "х", "x", "у", "y", "і", "i",
	// greek
	"α", "a", "ο", "o", "ι", "i", "ν", "v",
	// leet
	"0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "@", "a", "$", "s",
)

func normalize(text string) string {
	text = strings.ToLower(text)
	return lookalikes.Replace(text)
}

func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Check scans text for banned vocabulary. It returns true if any word matches a
// banned pattern and the match is not listed in that word's exceptions.
func (c *Censor) Check(text string) bool {
	for _, w := range words(normalize(text)) {
		for _, banned := range c.bannedWords {
			match := banned.regexPattern.FindString(w)
			if match == "" {
				continue
			}

			isException := false
			for _, exc := range banned.Exceptions {
				if exc == match {
					isException = true
					break
				}
			}

			if !isException {
				return true
			}
		}
	}

	return false
}
