package store

import "strings"

// venueAliases maps a venue nickname/kana reading to its official name.
// Venue codes are not re-derived here since the store schema already keys
// races by venue_code; this table only normalizes free-text venue input
// on the search path.
var venueAliases = map[string]string{
	"さっぽろ": "札幌", "はこだて": "函館", "ふくしま": "福島", "にいがた": "新潟",
	"とうきょう": "東京", "なかやま": "中山", "ちゅうきょう": "中京", "きょうと": "京都",
	"はんしん": "阪神", "こくら": "小倉",
}

// raceNameAliases maps a common nickname to the official race names it
// should expand to when searching.
var raceNameAliases = map[string][]string{
	"日本ダービー":   {"東京優駿"},
	"ダービー":     {"東京優駿", "ダービー"},
	"オークス":     {"優駿牝馬"},
	"天皇賞春":     {"天皇賞（春）", "天皇賞(春)"},
	"天皇賞秋":     {"天皇賞（秋）", "天皇賞(秋)"},
	"ジャパンカップ":  {"ジャパンカップ", "ジャパンＣ"},
	"マイルCS":    {"マイルチャンピオンシップ", "マイルＣＳ"},
	"スプリンターズS": {"スプリンターズステークス", "スプリンターズＳ"},
	"フェブラリーS":  {"フェブラリーステークス", "フェブラリーＳ"},
	"朝日杯FS":    {"朝日杯フューチュリティステークス", "朝日杯ＦＳ"},
	"阪神JF":     {"阪神ジュベナイルフィリーズ", "阪神ＪＦ"},
	"ホープフルS":   {"ホープフルステークス", "ホープフルＳ"},
	"NHKマイル":   {"ＮＨＫマイルカップ"},
	"NHKマイルC":  {"ＮＨＫマイルカップ"},
	"チャンピオンズC": {"チャンピオンズカップ"},
	"ステイヤーズS":  {"ステイヤーズステークス", "ステイヤーズＳ"},
}

// VenueAliases normalizes a free-text venue name to its official form,
// returning the input unchanged if no alias matches.
func VenueAliases(venueInput string) string {
	if official, ok := venueAliases[venueInput]; ok {
		return official
	}
	return venueInput
}

// venueCodeToName is the static JRA venue code table (models.
// rightHandedVenues keys handedness by the same codes).
var venueCodeToName = map[string]string{
	"01": "札幌", "02": "函館", "03": "福島", "04": "新潟", "05": "東京",
	"06": "中山", "07": "中京", "08": "京都", "09": "阪神", "10": "小倉",
}

var venueNameToCode = func() map[string]string {
	out := make(map[string]string, len(venueCodeToName))
	for code, name := range venueCodeToName {
		out[name] = code
	}
	return out
}()

// VenueNameForCode returns the official display name for a venue code, or
// the code itself if unrecognized.
func VenueNameForCode(code string) string {
	if name, ok := venueCodeToName[code]; ok {
		return name
	}
	return code
}

// VenueCodeForName returns the venue code for an official display name
// (already alias-normalized by VenueAliases), or "" if unrecognized.
func VenueCodeForName(name string) string {
	return venueNameToCode[name]
}

// ExpandRaceNameQuery returns the original query plus every official name
// a matching alias expands to, for use with Store.SearchRacesByName.
func ExpandRaceNameQuery(query string) []string {
	terms := []string{query}
	trimmed := strings.TrimSpace(query)
	for alias, official := range raceNameAliases {
		if alias == trimmed || strings.Contains(trimmed, alias) {
			terms = append(terms, official...)
			break
		}
	}
	return dedupe(terms)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
