package features

// smallVenues lists the regional JRA venue codes, used for the "venue small
// vs large" classification inside a horse's previous-race detail rows.
// Every other known venue counts as large.
var smallVenues = map[string]bool{
	"01": true, "02": true, "03": true, "04": true, "10": true,
}

func venueIsSmall(code string) bool {
	return smallVenues[code]
}
