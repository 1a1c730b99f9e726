package redaction

import (
	"regexp"
	"strings"
)

// placeNames lists Indian states, union territories and large cities that appear in
// printed addresses. Multi-word names are kept whole and split so single OCR tokens match.
var placeNames = []string{
	// states
	"andhra pradesh", "andhra", "arunachal pradesh", "arunachal", "assam", "bihar",
	"chhattisgarh", "goa", "gujarat", "haryana", "himachal pradesh", "himachal",
	"jharkhand", "karnataka", "kerala", "madhya pradesh", "madhya", "maharashtra",
	"manipur", "meghalaya", "mizoram", "nagaland", "odisha", "orissa", "punjab",
	"rajasthan", "sikkim", "tamil nadu", "tamilnadu", "telangana", "tripura",
	"uttar pradesh", "uttarakhand", "uttaranchal", "west bengal", "bengal", "pradesh",
	// union territories
	"delhi", "new delhi", "chandigarh", "puducherry", "pondicherry", "ladakh", "jammu",
	"kashmir", "lakshadweep", "andaman", "nicobar", "daman", "dadra", "haveli",
	// cities
	"mumbai", "bombay", "pune", "nagpur", "thane", "nashik", "aurangabad", "bengaluru",
	"bangalore", "mysuru", "mysore", "mangaluru", "mangalore", "hubli", "chennai", "madras",
	"coimbatore", "madurai", "tiruchirappalli", "salem", "hyderabad", "secunderabad",
	"warangal", "kolkata", "calcutta", "howrah", "ahmedabad", "surat", "vadodara",
	"rajkot", "jaipur", "jodhpur", "udaipur", "kota", "lucknow", "kanpur", "varanasi",
	"agra", "allahabad", "prayagraj", "meerut", "noida", "ghaziabad", "gurgaon",
	"gurugram", "faridabad", "patna", "gaya", "ranchi", "jamshedpur", "dhanbad", "bhopal",
	"indore", "gwalior", "jabalpur", "raipur", "bhubaneswar", "cuttack", "guwahati",
	"kochi", "cochin", "ernakulam", "thiruvananthapuram", "trivandrum", "kozhikode",
	"visakhapatnam", "vijayawada", "guntur", "tirupati", "amritsar", "ludhiana",
	"jalandhar", "dehradun", "shimla", "srinagar", "panaji",
}

var rePlace = compilePlaces(placeNames)

func compilePlaces(names []string) *regexp.Regexp {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// IsPlace reports whether text names a known place
func IsPlace(text string) bool {
	return rePlace.MatchString(text)
}
