package adapters

import (
	"net/http"

	"github.com/ZanzyTHEbar/judge-relay/internal/relay"
	"github.com/gin-gonic/gin"
)

const GFGError = "Failed to fetch from GeeksforGeeks"

// GFG forwards {handle} bodies to the GeeksforGeeks submissions API
func GFG(endpoint string) relay.Upstream {
	return relay.Upstream{
		Name:         "gfg",
		Method:       http.MethodPost,
		Target:       func(*gin.Context) (string, error) { return endpoint, nil },
		ForwardBody:  true,
		ErrorMessage: GFGError,
	}
}
