package validator

import (
	"regexp"
	"strings"

	"github.com/aleister1102/eventextract/internal/models"
)

type tagRule struct {
	tag     string
	pattern *regexp.Regexp
}

func rule(tag string, words ...string) tagRule {
	return tagRule{tag: tag, pattern: regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b`)}
}

// tagRules run in order; a tag appears at most once.
var tagRules = []tagRule{
	// age groups
	rule("kids", `kids?`, `children`, `child`, `toddlers?`, `preschool(?:ers)?`, `babies`, `baby`, `storytime`, `story time`),
	rule("teens", `teens?`, `teenagers?`, `tweens?`, `young adults?`),
	rule("adults", `adults?`, `grown-ups?`),
	rule("families", `famil(?:y|ies)`, `all ages`),
	rule("seniors", `seniors?`, `older adults`, `55 and (?:over|up)`),
	// activity types
	rule("workshop", `workshops?`, `hands-on`, `classe?s?`, `lessons?`),
	rule("performance", `performances?`, `concerts?`, `shows?`, `theat(?:er|re)`, `recital`, `play`),
	rule("meeting", `meetings?`, `meetups?`, `club`, `discussion`, `council`),
	rule("festival", `festivals?`, `fair`, `celebrations?`, `parade`),
	rule("educational", `educational`, `lectures?`, `talks?`, `learn(?:ing)?`, `seminars?`, `stem`),
	rule("sports", `sports?`, `soccer`, `basketball`, `baseball`, `tennis`, `swim(?:ming)?`, `run`, `race`),
	rule("art", `art`, `arts`, `crafts?`, `painting`, `drawing`, `gallery`, `exhibit(?:ion)?`),
	// topics
	rule("science", `science`, `scientific`, `astronomy`, `robotics?`, `chemistry`, `biology`),
	rule("history", `history`, `historic(?:al)?`, `heritage`),
	rule("music", `music(?:al)?`, `jazz`, `choir`, `orchestra`, `band`, `sing-?along`),
	rule("fitness", `fitness`, `yoga`, `workout`, `exercise`, `pilates`, `zumba`),
	rule("food", `food`, `cooking`, `baking`, `tasting`, `farmers market`, `dinner`, `lunch`, `brunch`),
	rule("technology", `technology`, `tech`, `coding`, `programming`, `computers?`, `digital`),
	// access
	rule("free", `free`, `no cost`, `no charge`, `complimentary`),
	rule("paid", `tickets?`, `admission fee`, `paid`),
	rule("indoor", `indoors?`),
	rule("outdoor", `outdoors?`, `park`, `garden`, `trail`, `hike`),
	rule("online", `online`, `virtual`, `zoom`, `livestream(?:ed)?`, `webinar`),
	rule("beginner-friendly", `beginners?`, `no experience`, `introduct(?:ion|ory)`, `intro to`),
}

// Tags derives keyword tags from an event's text. The result is
// deterministic and follows rule order.
func Tags(e models.NormalizedEvent) []string {
	text := strings.ToLower(strings.Join([]string{e.Title, e.Description, e.Location}, " "))
	tags := []string{}
	if strings.TrimSpace(text) == "" {
		return tags
	}
	for _, r := range tagRules {
		if r.pattern.MatchString(text) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}
