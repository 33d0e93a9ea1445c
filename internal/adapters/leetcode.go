package adapters

import (
	"net/http"

	"github.com/ZanzyTHEbar/judge-relay/internal/relay"
	"github.com/gin-gonic/gin"
)

const LeetCodeError = "Failed to fetch from LeetCode"

// LeetCode forwards GraphQL documents to the LeetCode endpoint. The query
// text is opaque here and forwarded as received.
func LeetCode(endpoint string) relay.Upstream {
	return relay.Upstream{
		Name:        "leetcode",
		Method:      http.MethodPost,
		Target:      func(*gin.Context) (string, error) { return endpoint, nil },
		ForwardBody: true,
		Headers: map[string]string{
			"Referer": "https://leetcode.com",
		},
		ErrorMessage: LeetCodeError,
	}
}
