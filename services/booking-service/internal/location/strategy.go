package location

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/calendar"
)

// Strategy infers a location tag from the host's calendar events up to and
// including asOf. ok is false when the events carry no signal.
type Strategy interface {
	Infer(events []calendar.Event, asOf time.Time) (tag string, ok bool)
}

// Destination maps keywords found in a flight event to a location tag.
type Destination struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// FlightKeywords is the default set of words marking an event as travel.
var FlightKeywords = []string{"flight", "비행", "✈️", "airport", "공항", "boarding", "탑승"}

// DefaultDestinations checks KR before US.
var DefaultDestinations = []Destination{
	{Tag: "KR", Keywords: []string{"korea", "한국", "seoul", "서울", "icn", "인천"}},
	{Tag: "US", Keywords: []string{"usa", "미국", "america", "us"}},
}

// FlightKeywordStrategy looks for the most recent flight event and reads its
// destination from the title or location.
type FlightKeywordStrategy struct {
	FlightKeywords []string
	Destinations   []Destination
}

func NewFlightKeywordStrategy(flight []string, destinations []Destination) FlightKeywordStrategy {
	if len(flight) == 0 {
		flight = FlightKeywords
	}
	if len(destinations) == 0 {
		destinations = DefaultDestinations
	}
	return FlightKeywordStrategy{FlightKeywords: flight, Destinations: destinations}
}

func (s FlightKeywordStrategy) Infer(events []calendar.Event, asOf time.Time) (string, bool) {
	sorted := append([]calendar.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.After(sorted[j].Start) })

	for _, ev := range sorted {
		if ev.Start.After(asOf) {
			continue
		}
		title := strings.ToLower(ev.Summary)
		desc := strings.ToLower(ev.Description)
		if !containsAny(title, s.FlightKeywords) && !containsAny(desc, s.FlightKeywords) {
			continue
		}
		where := strings.ToLower(ev.Location)
		for _, dest := range s.Destinations {
			if containsAny(title, dest.Keywords) || containsAny(where, dest.Keywords) {
				return dest.Tag, true
			}
		}
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if matchKeyword(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// matchKeyword does substring matching, except that ASCII keywords of up to
// three letters ("us", "icn") must stand alone as a word.
func matchKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	if len(kw) > 3 || !isASCIIWord(kw) {
		return strings.Contains(text, kw)
	}
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if field == kw {
			return true
		}
	}
	return false
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
