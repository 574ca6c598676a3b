package jstime

import (
	"fmt"
	"regexp"
	"time"
)

// 本包提供固定UTC+9民用日历的时间计算。
// 所有每日限额和月度聚合都必须基于这个固定时区，
// 而不是服务器或客户端的本地时区。

// jst 是固定的UTC+9时区。不依赖主机的tzdata。
var jst = time.FixedZone("JST", 9*60*60)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Location 返回固定的UTC+9时区。
func Location() *time.Location {
	return jst
}

// Now 返回以UTC+9表示的当前时间。
func Now() time.Time {
	return time.Now().In(jst)
}

// DayString 返回给定时刻在UTC+9日历下的日期，格式为 "YYYY-MM-DD"。
func DayString(t time.Time) string {
	return t.In(jst).Format("2006-01-02")
}

// MonthString 返回给定时刻在UTC+9日历下的月份，格式为 "YYYY-MM"。
func MonthString(t time.Time) string {
	return t.In(jst).Format("2006-01")
}

// StartOfDay 返回给定时刻所在UTC+9日历日的零点。
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(jst).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, jst)
}

// NextDayStart 返回给定时刻的下一个UTC+9日历日零点。
// 每日限额的重置时刻就是这个时间。
func NextDayStart(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// MonthRange 返回 "YYYY-MM" 月份在UTC+9日历下的起止时刻 [start, end)。
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", month, jst)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("无效的月份格式 %q: %w", month, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// ValidMonth 校验 "YYYY-MM" 格式的月份字符串。
func ValidMonth(month string) bool {
	return monthPattern.MatchString(month)
}
