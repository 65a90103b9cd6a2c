package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"aptwatch/config"
)

const baseURL = "https://www.apartments.com"

var (
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugHyphen = regexp.MustCompile(`[\s_]+`)
)

func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "")
	return slugHyphen.ReplaceAllString(s, "-")
}

// SearchURL builds a search results URL for one area and page. The site
// encodes bedroom filters as path segments ("2-bedrooms",
// "2-to-4-bedrooms") and price bounds as a bare query string
// ("?min-1000-max-2500"); neighborhoods prefix the location slug.
func SearchURL(criteria config.SearchCriteria, neighborhood string, page int) string {
	location := slugify(criteria.Location)
	if neighborhood != "" {
		location = slugify(neighborhood) + "-" + location
	}

	pathParts := []string{location}

	if min := criteria.Bedrooms.Min; min != nil {
		if max := criteria.Bedrooms.Max; max != nil && *max != *min {
			pathParts = append(pathParts, fmt.Sprintf("%d-to-%d-bedrooms", *min, *max))
		} else {
			pathParts = append(pathParts, fmt.Sprintf("%d-bedrooms", *min))
		}
	}

	if page > 1 {
		pathParts = append(pathParts, fmt.Sprintf("%d", page))
	}

	url := baseURL + "/" + strings.Join(pathParts, "/") + "/"

	var priceParts []string
	if criteria.Price.Min != nil {
		priceParts = append(priceParts, fmt.Sprintf("min-%d", int(*criteria.Price.Min)))
	}
	if criteria.Price.Max != nil {
		priceParts = append(priceParts, fmt.Sprintf("max-%d", int(*criteria.Price.Max)))
	}
	if len(priceParts) > 0 {
		url += "?" + strings.Join(priceParts, "-")
	}

	return url
}
