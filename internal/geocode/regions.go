package geocode

import "github.com/terraguard/climate-alerts/internal/models"

// Region is one entry in the pre-seeded table of known administrative regions.
type Region struct {
	Name  string
	Coord models.Coordinate
}

// StaticRegions returns the pre-calculated coordinates for major Kenyan cities
// and counties. Resolving these locally avoids a metered geocoding call for
// the bulk of traffic; the table is loaded once at startup and never mutated.
func StaticRegions() map[string]Region {
	return map[string]Region{
		// Major cities
		"nairobi": {Name: "Nairobi", Coord: models.Coordinate{Latitude: -1.286389, Longitude: 36.817223}},
		"mombasa": {Name: "Mombasa", Coord: models.Coordinate{Latitude: -4.043477, Longitude: 39.668206}},
		"kisumu":  {Name: "Kisumu", Coord: models.Coordinate{Latitude: -0.091702, Longitude: 34.767956}},
		"nakuru":  {Name: "Nakuru", Coord: models.Coordinate{Latitude: -0.303099, Longitude: 36.080026}},
		"eldoret": {Name: "Eldoret", Coord: models.Coordinate{Latitude: 0.520200, Longitude: 35.269779}},

		// Coast
		"malindi": {Name: "Malindi", Coord: models.Coordinate{Latitude: -3.219070, Longitude: 40.116940}},
		"lamu":    {Name: "Lamu", Coord: models.Coordinate{Latitude: -2.271648, Longitude: 40.901920}},
		"kilifi":  {Name: "Kilifi", Coord: models.Coordinate{Latitude: -3.630700, Longitude: 39.849200}},
		"kwale":   {Name: "Kwale", Coord: models.Coordinate{Latitude: -4.172500, Longitude: 39.450800}},
		"watamu":  {Name: "Watamu", Coord: models.Coordinate{Latitude: -3.357700, Longitude: 40.030000}},

		// Western
		"kakamega": {Name: "Kakamega", Coord: models.Coordinate{Latitude: 0.283170, Longitude: 34.751870}},
		"bungoma":  {Name: "Bungoma", Coord: models.Coordinate{Latitude: 0.563420, Longitude: 34.557640}},
		"kitale":   {Name: "Kitale", Coord: models.Coordinate{Latitude: 1.015880, Longitude: 34.994820}},
		"busia":    {Name: "Busia", Coord: models.Coordinate{Latitude: 0.459300, Longitude: 34.111600}},
		"webuye":   {Name: "Webuye", Coord: models.Coordinate{Latitude: 0.621300, Longitude: 34.771100}},

		// Central
		"thika":     {Name: "Thika", Coord: models.Coordinate{Latitude: -1.033300, Longitude: 37.069300}},
		"nyeri":     {Name: "Nyeri", Coord: models.Coordinate{Latitude: -0.420700, Longitude: 36.949300}},
		"muranga":   {Name: "Muranga", Coord: models.Coordinate{Latitude: -0.716700, Longitude: 37.150000}},
		"kiambu":    {Name: "Kiambu", Coord: models.Coordinate{Latitude: -1.183300, Longitude: 36.833300}},
		"kirinyaga": {Name: "Kirinyaga", Coord: models.Coordinate{Latitude: -0.500000, Longitude: 37.383300}},
		"nyandarua": {Name: "Nyandarua", Coord: models.Coordinate{Latitude: -0.050000, Longitude: 36.533300}},
		"karatina":  {Name: "Karatina", Coord: models.Coordinate{Latitude: -0.486100, Longitude: 37.131100}},

		// Eastern
		"meru":          {Name: "Meru", Coord: models.Coordinate{Latitude: 0.047000, Longitude: 37.655800}},
		"embu":          {Name: "Embu", Coord: models.Coordinate{Latitude: -0.531400, Longitude: 37.457500}},
		"machakos":      {Name: "Machakos", Coord: models.Coordinate{Latitude: -1.521590, Longitude: 37.263440}},
		"kitui":         {Name: "Kitui", Coord: models.Coordinate{Latitude: -1.366900, Longitude: 38.010600}},
		"makueni":       {Name: "Makueni", Coord: models.Coordinate{Latitude: -2.283300, Longitude: 37.800000}},
		"tharaka-nithi": {Name: "Tharaka-Nithi", Coord: models.Coordinate{Latitude: -0.366700, Longitude: 37.650000}},

		// Rift Valley
		"naivasha": {Name: "Naivasha", Coord: models.Coordinate{Latitude: -0.713300, Longitude: 36.433300}},
		"narok":    {Name: "Narok", Coord: models.Coordinate{Latitude: -1.083300, Longitude: 35.866700}},
		"kajiado":  {Name: "Kajiado", Coord: models.Coordinate{Latitude: -2.100000, Longitude: 36.783300}},
		"kericho":  {Name: "Kericho", Coord: models.Coordinate{Latitude: -0.368700, Longitude: 35.283600}},
		"bomet":    {Name: "Bomet", Coord: models.Coordinate{Latitude: -0.783300, Longitude: 35.316700}},
		"nandi":    {Name: "Nandi", Coord: models.Coordinate{Latitude: 0.183300, Longitude: 35.133300}},
		"baringo":  {Name: "Baringo", Coord: models.Coordinate{Latitude: 0.466700, Longitude: 36.083300}},
		"laikipia": {Name: "Laikipia", Coord: models.Coordinate{Latitude: 0.366700, Longitude: 36.783300}},

		// Northern
		"garissa":  {Name: "Garissa", Coord: models.Coordinate{Latitude: -0.456700, Longitude: 39.641300}},
		"isiolo":   {Name: "Isiolo", Coord: models.Coordinate{Latitude: 0.354700, Longitude: 37.583300}},
		"marsabit": {Name: "Marsabit", Coord: models.Coordinate{Latitude: 2.333300, Longitude: 37.983300}},
		"wajir":    {Name: "Wajir", Coord: models.Coordinate{Latitude: 1.750000, Longitude: 40.066700}},
		"mandera":  {Name: "Mandera", Coord: models.Coordinate{Latitude: 3.933300, Longitude: 41.850000}},
		"turkana":  {Name: "Turkana", Coord: models.Coordinate{Latitude: 3.316700, Longitude: 35.599800}},
		"samburu":  {Name: "Samburu", Coord: models.Coordinate{Latitude: 1.216700, Longitude: 37.033300}},

		// South Nyanza
		"kisii":    {Name: "Kisii", Coord: models.Coordinate{Latitude: -0.683333, Longitude: 34.766667}},
		"migori":   {Name: "Migori", Coord: models.Coordinate{Latitude: -1.063889, Longitude: 34.473333}},
		"homa bay": {Name: "Homa Bay", Coord: models.Coordinate{Latitude: -0.527100, Longitude: 34.457200}},
		"siaya":    {Name: "Siaya", Coord: models.Coordinate{Latitude: -0.066700, Longitude: 34.283300}},
		"nyamira":  {Name: "Nyamira", Coord: models.Coordinate{Latitude: -0.566700, Longitude: 34.933300}},

		// Other major towns
		"ruiru":  {Name: "Ruiru", Coord: models.Coordinate{Latitude: -1.150000, Longitude: 36.966700}},
		"ngong":  {Name: "Ngong", Coord: models.Coordinate{Latitude: -1.366700, Longitude: 36.666700}},
		"limuru": {Name: "Limuru", Coord: models.Coordinate{Latitude: -1.116700, Longitude: 36.633300}},
		"voi":    {Name: "Voi", Coord: models.Coordinate{Latitude: -3.396100, Longitude: 38.556100}},
		"taveta": {Name: "Taveta", Coord: models.Coordinate{Latitude: -3.399200, Longitude: 37.683300}},
		"lodwar": {Name: "Lodwar", Coord: models.Coordinate{Latitude: 3.133300, Longitude: 35.600000}},
		"moyale": {Name: "Moyale", Coord: models.Coordinate{Latitude: 3.516700, Longitude: 39.050000}},
	}
}
