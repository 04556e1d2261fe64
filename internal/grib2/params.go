package grib2

// paramNames maps (discipline, category, number) to NCEP abbreviations for the
// parameters the wind and wave products request.
var paramNames = map[[3]int]string{
	// meteorological, momentum
	{0, 2, 0}:  "WDIR",
	{0, 2, 1}:  "WIND",
	{0, 2, 2}:  "UGRD",
	{0, 2, 3}:  "VGRD",
	{0, 2, 22}: "GUST",

	// oceanographic, waves
	{10, 0, 3}:  "HTSGW",
	{10, 0, 4}:  "WVDIR",
	{10, 0, 5}:  "WVHGT",
	{10, 0, 6}:  "WVPER",
	{10, 0, 7}:  "SWDIR",
	{10, 0, 8}:  "SWELL",
	{10, 0, 9}:  "SWPER",
	{10, 0, 10}: "DIRPW",
	{10, 0, 11}: "PERPW",
	{10, 0, 12}: "DIRSW",
	{10, 0, 13}: "PERSW",
}

// Surface types (code table 4.5) used by the products.
const (
	SurfaceGround          = 1
	SurfaceHeightAboveGnd  = 103
	SurfaceOrderedSequence = 241
)
