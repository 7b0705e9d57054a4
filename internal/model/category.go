package model

// Category is one of a closed set of event owners.
type Category string

const (
	CategoryYunhee Category = "yunhee"
	CategoryEon    Category = "eon"
	CategoryTaeeun Category = "taeeun"
	CategoryAndo   Category = "ando"
	CategoryFamily Category = "family"
	CategoryEtc    Category = "etc"
)

// CategoryInfo is the display data for a category.
type CategoryInfo struct {
	Key      Category `json:"key"`
	Label    string   `json:"label"`
	ColorVar string   `json:"colorVar"`
}

// Categories lists every category in menu order.
var Categories = []CategoryInfo{
	{CategoryYunhee, "윤희", "--yunhee"},
	{CategoryEon, "이언", "--eon"},
	{CategoryTaeeun, "태은", "--taeeun"},
	{CategoryAndo, "안도", "--ando"},
	{CategoryFamily, "가족", "--family"},
	{CategoryEtc, "기타", "--etc"},
}

var categoryIndex = func() map[Category]CategoryInfo {
	m := make(map[Category]CategoryInfo, len(Categories))
	for _, c := range Categories {
		m[c.Key] = c
	}
	return m
}()

// Valid reports whether c is one of the known keys.
func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Info returns the display data for c; unknown keys get the etc entry.
func (c Category) Info() CategoryInfo {
	if info, ok := categoryIndex[c]; ok {
		return info
	}
	return categoryIndex[CategoryEtc]
}
