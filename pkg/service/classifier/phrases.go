package classifier

import "regexp"

var searchPhrases = []string{
	"find",
	"show me",
	"search for",
	"when did i",
	"where did i",
	"what did i write",
	"look up",
	"list",
}

var additivePhrases = []string{
	"also",
	"update",
	"another",
	"forgot",
	"in addition",
	"plus",
	"adding",
	"one more thing",
}

var savePhrases = []string{
	"save",
	"log",
	"capture",
	"remember",
	"write this down",
	"note that",
	"journal",
	"record",
}

var temporalMarkers = []string{
	"today",
	"tonight",
	"this morning",
	"this afternoon",
	"this evening",
	"yesterday",
	"earlier",
	"just now",
	"right now",
	"tomorrow",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

var actionVerbs = []string{
	"finished",
	"completed",
	"did",
	"ran",
	"talked",
	"spoke",
	"met",
	"decided",
	"started",
	"launched",
	"sent",
	"emailed",
	"called",
	"worked",
	"wrote",
	"built",
	"shipped",
}

var schedulePhrases = []string{
	"schedule",
	"book",
	"block time",
	"block off",
	"plan a",
	"plan an",
	"set up a",
	"calendar",
	"meeting",
	"session",
	"appointment",
}

var goalPhrases = []string{
	"i want to",
	"i'd like to",
	"my goal",
	"new goal",
	"goal is to",
	"aim to",
	"aiming to",
	"start learning",
	"work towards",
	"commit to",
}

var (
	commandPattern  = regexp.MustCompile(`^\s*/`)
	pronounAnchors  = regexp.MustCompile(`(?i)\b(it|this|that|the goal|the entry|that goal|this entry|that plan|the plan|that project|this project)\b`)
	questionPattern = regexp.MustCompile(`\?`)
	clockPattern    = regexp.MustCompile(`(?i)\b(\d{1,2}(:\d{2})?\s?(am|pm))\b`)
)
