// Package routine pulls a structured workout plan out of free-form model text.
//
// The wire format is two literal marker tokens around a JSON document:
//
//	<begin marker> JSON <end marker>
//
// Several marker versions are accepted; they are tried in order and the first
// pair present in the text wins.
package routine

// Markers is one version of the begin/end delimiter pair.
type Markers struct {
	Version string
	Begin   string
	End     string
}

var (
	// Primary is what the prompt builder asks for.
	Primary = Markers{Version: "v2", Begin: "<<<WORKOUT_JSON_BEGIN>>>", End: "<<<WORKOUT_JSON_END>>>"}
	// Legacy is the multi-day routine format older chat replies used.
	Legacy = Markers{Version: "v1", Begin: "**ROUTINE_DATA_START**", End: "**ROUTINE_DATA_END**"}
)

// Grammar is an ordered list of marker versions.
type Grammar []Markers

// DefaultGrammar tries Primary, then Legacy.
var DefaultGrammar = Grammar{Primary, Legacy}
