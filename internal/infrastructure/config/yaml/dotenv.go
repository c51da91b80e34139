package yaml

import (
	"bytes"

	"github.com/joho/godotenv"
)

// parseDotenv parses a dotenv file's contents into a flat KEY=VALUE map
// using godotenv's grammar (export prefixes, quoted values, comments,
// blank lines) rather than a hand-rolled scanner. The result is a flat
// override layer (§4.B); godotenv.Parse does expand `$VAR` references in
// values, against keys defined earlier in the same file. A file that fails
// to parse yields an empty map.
func parseDotenv(data []byte) map[string]string {
	out, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return map[string]string{}
	}
	return out
}
