package gen

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// NewNode builds the process-wide snowflake node. The node id comes from
// SNOWFLAKE_NODE_ID so replicas never mint colliding ids; a single instance
// can leave it unset.
func NewNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
