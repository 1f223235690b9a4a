package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSeason normalizes a college football season identifier to a four digit
// year string. Accepts "2024", 2024, "2024-25" and "2024/25" forms; the
// season is named for the calendar year in which it starts.
func ParseSeason(season any) (string, error) {
	if season == nil {
		return "", fmt.Errorf("must pass a season")
	}

	var ss string
	switch v := season.(type) {
	case string:
		ss = strings.TrimSpace(v)
	case int:
		ss = strconv.Itoa(v)
	case int64:
		ss = strconv.FormatInt(v, 10)
	case float64:
		ss = strconv.Itoa(int(v))
	default:
		return "", fmt.Errorf("unsupported season type %T", season)
	}

	if len(ss) >= 5 && (ss[4] == '-' || ss[4] == '/') {
		ss = ss[:4]
	}

	if len(ss) != 4 {
		return "", fmt.Errorf("invalid season format: %q", ss)
	}

	year, err := strconv.Atoi(ss)
	if err != nil {
		return "", fmt.Errorf("invalid season format: %q", ss)
	}
	if year < 1900 || year > 2200 {
		return "", fmt.Errorf("season year out of range: %d", year)
	}

	return ss, nil
}

// IsSameSeason reports whether the two identifiers name the same season
func IsSameSeason(s1, s2 any) (bool, error) {
	season1, err := ParseSeason(s1)
	if err != nil {
		return false, err
	}
	season2, err := ParseSeason(s2)
	if err != nil {
		return false, err
	}
	return season1 == season2, nil
}
