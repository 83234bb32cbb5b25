package utils

import (
	"fmt"
	"time"
)

// YmdLayout is the calendar-date format used for every challenge date.
const YmdLayout = "2006-01-02"

var jst = loadJST()

func loadJST() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// JST returns the Asia/Tokyo location all challenge dates are pinned to.
func JST() *time.Location {
	return jst
}

// JstYmd returns the Asia/Tokyo calendar date of t as YYYY-MM-DD.
func JstYmd(t time.Time) string {
	return t.In(jst).Format(YmdLayout)
}

// ParseYmd parses a YYYY-MM-DD string as a UTC midnight.
func ParseYmd(ymd string) (time.Time, error) {
	t, err := time.Parse(YmdLayout, ymd)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", ymd, err)
	}
	return t, nil
}

// IsValidYmd reports whether s is a well-formed calendar date.
func IsValidYmd(s string) bool {
	_, err := ParseYmd(s)
	return err == nil
}

// AddDaysToYmd shifts a calendar date by the given number of days.
func AddDaysToYmd(ymd string, days int) (string, error) {
	t, err := ParseYmd(ymd)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(YmdLayout), nil
}

// DaysBetweenYmd returns to - from in whole days.
func DaysBetweenYmd(from, to string) (int, error) {
	f, err := ParseYmd(from)
	if err != nil {
		return 0, err
	}
	t, err := ParseYmd(to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// IsAfterYmd compares two YYYY-MM-DD strings; lexical order equals date order.
func IsAfterYmd(a, b string) bool {
	return a > b
}
