package signaling

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
)

// Word pools for memorable room IDs. Rooms are created on first join with
// whatever ID the caller supplies; these only feed the convenience endpoint
// that suggests an ID for a "create room" flow.

var adjectives = []string{
	"amber", "brisk", "calm", "dusty", "eager", "fuzzy", "gentle", "hazy",
	"ivory", "jolly", "keen", "lucid", "mellow", "nimble", "opal", "plucky",
	"quiet", "rosy", "silver", "tidy", "umber", "vivid", "witty", "zesty",
	"bright", "cozy", "swift", "bold", "merry", "crisp",
}

var shapes = []string{
	"cube", "sphere", "prism", "torus", "helix", "vertex", "facet", "spline",
	"lattice", "plane", "wedge", "cone", "ring", "arc", "grid", "mesh",
	"voxel", "quad", "strut", "gimbal", "orbit", "axis", "pivot", "frame",
	"shard", "tile", "beam", "node", "edge", "loop",
}

var places = []string{
	"atrium", "studio", "harbor", "meadow", "summit", "garden", "gallery",
	"forge", "loft", "plaza", "grove", "canyon", "delta", "mesa", "fjord",
	"lagoon", "basin", "ridge", "vale", "cove", "glade", "dune", "reef",
	"tundra", "steppe", "bluff", "knoll", "marsh", "heath", "strand",
}

// GenerateRoomID creates a random, memorable room identifier.
// Format: adjective-shape-place (e.g. "mellow-torus-harbor").
func GenerateRoomID() string {
	return fmt.Sprintf("%s-%s-%s",
		adjectives[randomIndex(len(adjectives))],
		shapes[randomIndex(len(shapes))],
		places[randomIndex(len(places))],
	)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
