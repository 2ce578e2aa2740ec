package report

import "strings"

// Category buckets for card merchants. Matching is a keyword scan over
// the merchant label; the first hit wins, so more specific keywords
// come first.
const CategoryOther = "other"

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"groceries", []string{"rewe", "edeka", "lidl", "aldi", "netto", "penny", "kaufland", "dm-", "rossmann", "supermarkt"}},
	{"dining", []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "burger", "pizza", "sushi", "bar ", "bistro", "baeckerei", "backerei"}},
	{"transport", []string{"bvg", "deutsche bahn", "db vertrieb", "uber", "bolt", "lime", "tier", "shell", "aral", "esso", "tanken"}},
	{"shopping", []string{"amazon", "zalando", "ikea", "mediamarkt", "saturn", "h&m", "zara", "decathlon"}},
	{"subscriptions", []string{"netflix", "spotify", "youtube", "apple.com", "google", "prime", "disney", "audible"}},
	{"travel", []string{"airbnb", "booking", "ryanair", "lufthansa", "easyjet", "hotel", "hostel"}},
}

// Categorize maps a merchant label onto a spending category.
func Categorize(merchant string) string {
	m := strings.ToLower(merchant)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(m, kw) {
				return c.category
			}
		}
	}
	return CategoryOther
}
