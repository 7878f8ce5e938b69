package constants

const (
	// States a frame result can be in as it moves from reader
	// to collector.
	StateImport      = "import"
	StateProcess     = "process"
	StateHeaderFrame = "header-frame"
	StateSeriesEnd   = "series-end"
	StateConnected   = "connected"
	StateError       = "error"

	// htype values from the Eiger SIMPLON stream interface.
	HTypeRunHeader   = "dheader-1.0"
	HTypeImage       = "dimage-1.0"
	HTypeImageData   = "dimage_d-1.0"
	HTypeSeriesEnd   = "dseries_end-1.0"
	HTypeRunHeaderID = "header-1.0"

	// Frame data encodings. The suffix "<" marks little-endian.
	EncodingLZ4    = "lz4<"
	EncodingBS8    = "bs8-lz4<"
	EncodingBS16   = "bs16-lz4<"
	EncodingBS32   = "bs32-lz4<"
	EncodingRaw    = "<"
	PixelTypeU16   = "uint16"
	PixelTypeU32   = "uint32"
	PixelTypeInt32 = "int32"

	// Socket roles, used for logging and socket ids.
	SocketPush   = "push"
	SocketPull   = "pull"
	SocketReq    = "req"
	SocketRouter = "router"

	// Frame sentinel values for results that carry no frame,
	// e.g. run headers and series-end markers.
	NoSeries      = -1
	NoFrame       = -1
	HeaderSeries  = -999
	HeaderFrame   = -999
	ResolutionCap = 99.0

	// DefaultReporting is the tag prepended to UI messages when the
	// run header carries no reporting key.
	DefaultReporting = "htos_note image_score"

	// Lattice placeholders used before indexing results exist.
	NoSpaceGroup = "NA"
	NoUnitCell   = "NA"
)

// ResultFields are the fields a result string may carry, in the
// default output order. The processing config can reorder or drop
// them.
var ResultFields = []string{
	"n_spots",
	"n_overloads",
	"score",
	"hres",
	"n_ice_rings",
	"mean_shape_ratio",
	"sg",
	"uc",
}

// IceRings lists d-spacings (Angstrom) of the strongest hexagonal
// ice powder rings, used to flag ice contamination.
var IceRings = [][2]float64{
	{3.93, 3.87},
	{3.70, 3.64},
	{3.47, 3.41},
	{2.70, 2.64},
	{2.28, 2.22},
	{2.10, 2.04},
	{1.95, 1.91},
	{1.90, 1.88},
	{1.74, 1.70},
	{1.53, 1.51},
}
