package holiday

import (
	"reflect"
	"testing"
	"time"

	"famcal/internal/model"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.Local)
}

func lunarDay(m, d int) model.LunarInfo {
	return model.LunarInfo{Month: m, Day: d, Valid: true}
}

func TestFor_SolarHolidaysExactlyOnce(t *testing.T) {
	for _, h := range SolarHolidays() {
		got := For(day(h.Month, h.Day), model.LunarInfo{})
		count := 0
		for _, name := range got {
			if name == h.Name {
				count++
			}
		}
		if count != 1 {
			t.Errorf("For(%d/%d) = %v, want %q exactly once", h.Month, h.Day, got, h.Name)
		}
	}
}

func TestFor_LunarRules(t *testing.T) {
	tests := []struct {
		name string
		li   model.LunarInfo
		want []string
	}{
		{"seollal", lunarDay(1, 1), []string{Seollal}},
		{"seollal eve 29", lunarDay(12, 29), []string{SeollalRecess}},
		{"seollal eve 30", lunarDay(12, 30), []string{SeollalRecess}},
		{"seollal day after", lunarDay(1, 2), []string{SeollalRecess}},
		{"buddha", lunarDay(4, 8), []string{Buddha}},
		{"chuseok", lunarDay(8, 15), []string{Chuseok}},
		{"chuseok eve", lunarDay(8, 14), []string{ChuseokRecess}},
		{"chuseok day after", lunarDay(8, 16), []string{ChuseokRecess}},
		{"ordinary", lunarDay(8, 17), nil},
		{"leap month chuseok", model.LunarInfo{Month: 8, Day: 15, Leap: true, Valid: true}, nil},
		{"invalid", model.LunarInfo{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A date with no solar holiday.
			got := For(day(time.July, 14), tt.li)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("For() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFor_SolarBeforeLunar(t *testing.T) {
	// Buddha's Birthday 2025 fell on Children's Day.
	got := For(day(time.May, 5), lunarDay(4, 8))
	want := []string{"어린이날", Buddha}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("For(2025-05-05) = %v, want %v", got, want)
	}
}

func TestFor_ChuseokWindowIsThreeEntries(t *testing.T) {
	var all []string
	for d := 14; d <= 16; d++ {
		all = append(all, For(day(time.October, 4+d-14), lunarDay(8, d))...)
	}
	// October 4-6 carry no solar holiday.
	want := []string{ChuseokRecess, Chuseok, ChuseokRecess}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("chuseok window = %v, want %v", all, want)
	}
}
