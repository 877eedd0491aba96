// Package scripture parses free-text Bible references into structured form.
package scripture

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reference is a parsed scripture reference.
type Reference struct {
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse,omitempty"`
	EndVerse    int    `json:"endVerse,omitempty"`
	Translation string `json:"translation,omitempty"`
	// Display is the normalized human-readable form, e.g. "John 3:16-18".
	Display string `json:"display"`
}

// books maps lowercase book names and common abbreviations to the canonical name.
var books = map[string]string{
	"genesis": "Genesis", "gen": "Genesis",
	"exodus": "Exodus", "exo": "Exodus", "ex": "Exodus",
	"leviticus": "Leviticus", "lev": "Leviticus",
	"numbers": "Numbers", "num": "Numbers",
	"deuteronomy": "Deuteronomy", "deut": "Deuteronomy",
	"joshua": "Joshua", "josh": "Joshua",
	"judges": "Judges", "judg": "Judges",
	"ruth":     "Ruth",
	"1 samuel": "1 Samuel", "1 sam": "1 Samuel",
	"2 samuel": "2 Samuel", "2 sam": "2 Samuel",
	"1 kings": "1 Kings", "2 kings": "2 Kings",
	"1 chronicles": "1 Chronicles", "1 chron": "1 Chronicles",
	"2 chronicles": "2 Chronicles", "2 chron": "2 Chronicles",
	"ezra": "Ezra", "nehemiah": "Nehemiah", "neh": "Nehemiah",
	"esther": "Esther", "job": "Job",
	"psalms": "Psalms", "psalm": "Psalms", "ps": "Psalms",
	"proverbs": "Proverbs", "prov": "Proverbs",
	"ecclesiastes": "Ecclesiastes", "eccl": "Ecclesiastes",
	"song of solomon": "Song of Solomon", "song": "Song of Solomon",
	"isaiah": "Isaiah", "isa": "Isaiah",
	"jeremiah": "Jeremiah", "jer": "Jeremiah",
	"lamentations": "Lamentations", "lam": "Lamentations",
	"ezekiel": "Ezekiel", "ezek": "Ezekiel",
	"daniel": "Daniel", "dan": "Daniel",
	"hosea": "Hosea", "joel": "Joel", "amos": "Amos",
	"obadiah": "Obadiah", "jonah": "Jonah",
	"micah": "Micah", "mic": "Micah",
	"nahum": "Nahum", "habakkuk": "Habakkuk", "hab": "Habakkuk",
	"zephaniah": "Zephaniah", "zeph": "Zephaniah",
	"haggai": "Haggai", "hag": "Haggai",
	"zechariah": "Zechariah", "zech": "Zechariah",
	"malachi": "Malachi", "mal": "Malachi",
	"matthew": "Matthew", "matt": "Matthew", "mt": "Matthew",
	"mark": "Mark", "mk": "Mark",
	"luke": "Luke", "lk": "Luke",
	"john": "John", "jn": "John",
	"acts":   "Acts",
	"romans": "Romans", "rom": "Romans",
	"1 corinthians": "1 Corinthians", "1 cor": "1 Corinthians",
	"2 corinthians": "2 Corinthians", "2 cor": "2 Corinthians",
	"galatians": "Galatians", "gal": "Galatians",
	"ephesians": "Ephesians", "eph": "Ephesians",
	"philippians": "Philippians", "phil": "Philippians",
	"colossians": "Colossians", "col": "Colossians",
	"1 thessalonians": "1 Thessalonians", "1 thess": "1 Thessalonians",
	"2 thessalonians": "2 Thessalonians", "2 thess": "2 Thessalonians",
	"1 timothy": "1 Timothy", "1 tim": "1 Timothy",
	"2 timothy": "2 Timothy", "2 tim": "2 Timothy",
	"titus": "Titus", "philemon": "Philemon", "phlm": "Philemon",
	"hebrews": "Hebrews", "heb": "Hebrews",
	"james": "James", "jas": "James",
	"1 peter": "1 Peter", "1 pet": "1 Peter",
	"2 peter": "2 Peter", "2 pet": "2 Peter",
	"1 john": "1 John", "2 john": "2 John", "3 john": "3 John",
	"jude":       "Jude",
	"revelation": "Revelation", "rev": "Revelation",
}

// refPattern matches "Book 3", "Book 3:16" and "Book 3:16-18" with an
// optional leading ordinal (e.g. "1 John").
var refPattern = regexp.MustCompile(`^((?:[1-3]\s+)?[A-Za-z]+(?:\s+(?:of\s+)?[A-Za-z]+)*?)\s+(\d+)(?::(\d+)(?:\s*-\s*(\d+))?)?$`)

// Parse parses a free-text reference like "John 3:16-18" or "ps 23".
// The translation, if non-empty, is carried through uppercased.
func Parse(raw, translation string) (*Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty reference")
	}

	m := refPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, fmt.Errorf("unrecognized reference %q", raw)
	}

	bookKey := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	book, ok := books[bookKey]
	if !ok {
		return nil, fmt.Errorf("unknown book %q", m[1])
	}

	chapter, err := strconv.Atoi(m[2])
	if err != nil || chapter < 1 {
		return nil, fmt.Errorf("invalid chapter in %q", raw)
	}

	ref := &Reference{
		Book:        book,
		Chapter:     chapter,
		Translation: strings.ToUpper(strings.TrimSpace(translation)),
	}

	if m[3] != "" {
		verse, err := strconv.Atoi(m[3])
		if err != nil || verse < 1 {
			return nil, fmt.Errorf("invalid verse in %q", raw)
		}
		ref.Verse = verse
	}
	if m[4] != "" {
		end, err := strconv.Atoi(m[4])
		if err != nil || end < ref.Verse {
			return nil, fmt.Errorf("invalid verse range in %q", raw)
		}
		ref.EndVerse = end
	}

	ref.Display = ref.format()
	return ref, nil
}

func (r *Reference) format() string {
	s := fmt.Sprintf("%s %d", r.Book, r.Chapter)
	if r.Verse > 0 {
		s += fmt.Sprintf(":%d", r.Verse)
		if r.EndVerse > 0 {
			s += fmt.Sprintf("-%d", r.EndVerse)
		}
	}
	return s
}
